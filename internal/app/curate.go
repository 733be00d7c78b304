package app

import (
	"sort"
	"time"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/dedupe"
	"github.com/deusflow/newsdigest/internal/highlight"
	"github.com/deusflow/newsdigest/internal/news"
	"github.com/deusflow/newsdigest/internal/personalize"
	"github.com/deusflow/newsdigest/internal/quality"
	"github.com/deusflow/newsdigest/internal/storage"
)

// Curation is the result of scoring and selecting over an assessed pool.
type Curation struct {
	SourceQuality   []news.SourceQuality
	TypeMultipliers map[string]float64
	Selection       highlight.Result
}

// Curate scores sources and selects highlights. The returned WriteBack carries the new
// source quality scores and this run's repeat reservations; it has no side effects.
func Curate(cfg *config.Config, snap storage.Snapshot, pool []news.Article, assessments map[string]news.Assessment, typeClicks news.ClickSeries, now time.Time) (Curation, storage.WriteBack) {
	c := Curation{TypeMultipliers: map[string]float64{}}

	c.SourceQuality = quality.Score(pool, assessments, snap.SourceQuality, quality.Options{
		LookbackDays: cfg.Quality.LookbackDays,
		MinSamples:   cfg.Quality.MinSamples,
	}, now)

	if cfg.Personalization.Type.Enabled {
		c.TypeMultipliers = personalize.Multipliers(typeClicks, multiplierOptions(cfg.Personalization.Type), now)
	}

	c.Selection = highlight.Select(pool, assessments, c.TypeMultipliers, snap.RepeatCounts, HighlightOptions(cfg))

	return c, storage.WriteBack{
		At:            now,
		SourceQuality: c.SourceQuality,
		Reservations:  c.Selection.Reservations,
	}
}

// HighlightOptions maps configuration onto selector options.
func HighlightOptions(cfg *config.Config) highlight.Options {
	h := cfg.Highlight
	return highlight.Options{
		MinScore:               h.MinScore,
		MinWorthReadingScore:   h.MinWorthReadingScore,
		MinConfidence:          h.MinConfidence,
		DynamicPercentile:      h.DynamicPercentile,
		SelectionRatio:         h.SelectionRatio,
		MinCount:               h.MinCount,
		TopN:                   h.TopN,
		MaxDuplicatesPerDigest: h.MaxDuplicatesPerDigest,
		RepeatGuardEnabled:     h.RepeatGuardEnabled,
		TypeBlend:              cfg.Personalization.TypeBlend,
		QualityGapGuard:        cfg.Personalization.QualityGapGuard,
		TrackingPrefixes:       cfg.Dedupe.TrackingParamPrefixes,
	}
}

// Pool orders deduplicated articles newest first (undated last, stable otherwise) and
// keeps at most limit of them.
func Pool(articles []news.Article, limit int) []news.Article {
	pool := append([]news.Article(nil), articles...)
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i].PublishedAt, pool[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// Deduplicate normalizes and deduplicates fetched articles with the configured settings.
func Deduplicate(cfg *config.Config, articles []news.Article) ([]news.Article, dedupe.Stats) {
	d := dedupe.New(cfg.Dedupe.TitleSimilarityThreshold, cfg.Dedupe.TrackingParamPrefixes)
	return d.Dedupe(news.NormalizeAll(articles))
}
