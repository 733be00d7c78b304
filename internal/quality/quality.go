// Package quality maintains the per-source reputation score that feeds the next run's priorities.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/deusflow/newsdigest/internal/news"
)

const (
	neutralScore  = 50.0
	freshWindow   = 7 * 24 * time.Hour
	historyWeight = 0.35
	currentWeight = 0.65

	DefaultLookback   = 30
	DefaultMinSamples = 8
)

// Options for Score.
type Options struct {
	LookbackDays int
	MinSamples   int
}

type sample struct {
	article    news.Article
	assessment news.Assessment
}

// Score computes this run's quality for every source with at least one assessed article
// published within the lookback window (articles without a date are included). The batch
// score
//
//	avgQuality*0.4 + avgImpact*0.25 + mustReadRate*100*0.2 + avgConfidence*100*0.1 + freshness*100*0.05
//
// is blended with history: toward 50 by sample size when there is no history, toward the
// historical value by sample size when the sample is below MinSamples, and 35/65 otherwise.
// Results are sorted by score, highest first.
func Score(articles []news.Article, assessments map[string]news.Assessment, history map[string]news.SourceQuality, opts Options, now time.Time) []news.SourceQuality {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookback
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinSamples
	}
	lookbackCutoff := now.AddDate(0, 0, -opts.LookbackDays)
	freshCutoff := now.Add(-freshWindow)

	grouped := make(map[string][]sample)
	for _, a := range articles {
		if a.PublishedAt != nil && a.PublishedAt.Before(lookbackCutoff) {
			continue
		}
		as, ok := assessments[a.ID]
		if !ok {
			continue
		}
		grouped[a.SourceID] = append(grouped[a.SourceID], sample{article: a, assessment: as})
	}

	results := make([]news.SourceQuality, 0, len(grouped))
	for sourceID, rows := range grouped {
		n := float64(len(rows))
		var sumQuality, sumImpact, sumConfidence float64
		var mustRead, fresh int
		for _, r := range rows {
			sumQuality += r.assessment.QualityScore
			sumImpact += r.assessment.AvgImpact()
			sumConfidence += r.assessment.Confidence
			if r.assessment.Worth == news.WorthMustRead {
				mustRead++
			}
			if r.article.PublishedAt != nil && !r.article.PublishedAt.Before(freshCutoff) {
				fresh++
			}
		}
		mustReadRate := float64(mustRead) / n
		avgConfidence := sumConfidence / n
		freshness := float64(fresh) / n
		batch := (sumQuality/n)*0.4 +
			(sumImpact/n)*0.25 +
			mustReadRate*100*0.2 +
			avgConfidence*100*0.1 +
			freshness*100*0.05

		score := blend(batch, len(rows), opts.MinSamples, history, sourceID)
		results = append(results, news.SourceQuality{
			SourceID:      sourceID,
			QualityScore:  round(min(100, max(0, score)), 2),
			ArticleCount:  len(rows),
			MustReadRate:  round(mustReadRate, 4),
			AvgConfidence: round(avgConfidence, 4),
			Freshness:     round(freshness, 4),
			UpdatedAt:     now,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].QualityScore != results[j].QualityScore {
			return results[i].QualityScore > results[j].QualityScore
		}
		return results[i].SourceID < results[j].SourceID
	})
	return results
}

func blend(batch float64, count, minSamples int, history map[string]news.SourceQuality, sourceID string) float64 {
	weight := float64(count) / float64(minSamples)
	h, ok := history[sourceID]
	switch {
	case ok && count < minSamples:
		return h.QualityScore*(1-weight) + batch*weight
	case ok:
		return h.QualityScore*historyWeight + batch*currentWeight
	case count < minSamples:
		return neutralScore*(1-weight) + batch*weight
	default:
		return batch
	}
}

// ToMap indexes scores by source ID.
func ToMap(scores []news.SourceQuality) map[string]news.SourceQuality {
	out := make(map[string]news.SourceQuality, len(scores))
	for _, s := range scores {
		out[s.SourceID] = s
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
