// Package highlight picks the final list of digest highlights from the assessed pool.
package highlight

import (
	"math"
	"sort"

	"github.com/deusflow/newsdigest/internal/dedupe"
	"github.com/deusflow/newsdigest/internal/news"
)

// Gate counter names.
const (
	GateNoAssessment               = "no_assessment"
	GateUnknownWorth               = "unknown_worth"
	GateWorthSkip                  = "worth_skip"
	GateLowConfidence              = "low_confidence"
	GateMustReadBelowThreshold     = "must_read_below_threshold"
	GateWorthReadingBelowThreshold = "worth_reading_below_threshold"
)

// Options configure a selection.
type Options struct {
	MinScore               float64
	MinWorthReadingScore   float64
	MinConfidence          float64
	DynamicPercentile      float64
	SelectionRatio         float64
	MinCount               int
	TopN                   int
	MaxDuplicatesPerDigest int
	RepeatGuardEnabled     bool
	TypeBlend              float64
	QualityGapGuard        float64
	TrackingPrefixes       []string
}

// DefaultOptions returns the standard gate settings.
func DefaultOptions() Options {
	return Options{
		MinScore:               62,
		MinWorthReadingScore:   58,
		MinConfidence:          0.55,
		DynamicPercentile:      70,
		SelectionRatio:         0.45,
		MinCount:               4,
		TopN:                   16,
		MaxDuplicatesPerDigest: 2,
		RepeatGuardEnabled:     true,
		TypeBlend:              0.2,
		QualityGapGuard:        8,
		TrackingPrefixes:       dedupe.DefaultTrackingPrefixes,
	}
}

// ExpandedOptions is DefaultOptions with the wider discovery-mode selection.
func ExpandedOptions() Options {
	o := DefaultOptions()
	o.SelectionRatio = 1
	o.MinCount = 8
	o.TopN = 32
	return o
}

// Diagnostics describe how the pool was narrowed down.
type Diagnostics struct {
	MinScore               float64        `json:"min_score"`
	DynamicThreshold       float64        `json:"dynamic_threshold"`
	EffectiveThreshold     float64        `json:"effective_threshold"`
	EligiblePool           int            `json:"eligible_pool"`
	SelectionCap           int            `json:"selection_cap"`
	GateSkips              map[string]int `json:"gate_skips"`
	MustReadCandidates     int            `json:"must_read_candidates"`
	WorthReadingCandidates int            `json:"worth_reading_candidates"`
	MustReadReordered      int            `json:"must_read_reordered"`
	WorthReadingReordered  int            `json:"worth_reading_reordered"`
	RepeatBlocked          int            `json:"repeat_blocked"`
	RepeatBlockedKeys      []string       `json:"repeat_blocked_keys,omitempty"`
	Selected               int            `json:"selected"`
}

// Result is the ordered highlight list, the repeat-limit reservations made by this run
// and the diagnostics.
type Result struct {
	Highlights   []news.ScoredArticle `json:"highlights"`
	Reservations map[string]int       `json:"reservations"`
	Diagnostics  Diagnostics          `json:"diagnostics"`
}

// NoCandidates reports whether every article was dropped by the gates.
func (r Result) NoCandidates() bool {
	return r.Diagnostics.MustReadCandidates+r.Diagnostics.WorthReadingCandidates == 0
}

type candidate struct {
	index        int
	article      news.Article
	assessment   news.Assessment
	personalized float64
}

func (c candidate) raw() float64 { return c.assessment.QualityScore }

// Select gates the pool in its original order, splits survivors into must-read and
// worth-reading lists, reorders each by type preference under the quality gap guard and
// fills the selection cap from must-read first. history holds prior occurrences per
// information key.
func Select(pool []news.Article, assessments map[string]news.Assessment, typeMultipliers map[string]float64, history map[string]int, opts Options) Result {
	diag := Diagnostics{MinScore: opts.MinScore, GateSkips: map[string]int{
		GateNoAssessment:               0,
		GateUnknownWorth:               0,
		GateWorthSkip:                  0,
		GateLowConfidence:              0,
		GateMustReadBelowThreshold:     0,
		GateWorthReadingBelowThreshold: 0,
	}}

	var scored []float64
	for _, a := range pool {
		if as, ok := assessments[a.ID]; ok && (as.Worth == news.WorthMustRead || as.Worth == news.WorthReading) {
			scored = append(scored, as.QualityScore)
		}
	}
	diag.DynamicThreshold = opts.MinScore
	if len(scored) > 0 {
		diag.DynamicThreshold = Percentile(scored, opts.DynamicPercentile)
	}
	diag.EffectiveThreshold = max(opts.MinScore, diag.DynamicThreshold)
	diag.EligiblePool = len(scored)
	diag.SelectionCap = SelectionCap(len(scored), opts)

	blend := min(1, max(0, opts.TypeBlend))
	var mustRead, worthReading []candidate
	for i, a := range pool {
		as, ok := assessments[a.ID]
		switch {
		case !ok:
			diag.GateSkips[GateNoAssessment]++
			continue
		case as.Worth == news.WorthSkip:
			diag.GateSkips[GateWorthSkip]++
			continue
		case as.Worth != news.WorthMustRead && as.Worth != news.WorthReading:
			diag.GateSkips[GateUnknownWorth]++
			continue
		case as.Confidence < opts.MinConfidence:
			diag.GateSkips[GateLowConfidence]++
			continue
		case as.Worth == news.WorthMustRead && as.QualityScore < diag.EffectiveThreshold:
			diag.GateSkips[GateMustReadBelowThreshold]++
			continue
		case as.Worth == news.WorthReading && as.QualityScore < opts.MinWorthReadingScore:
			diag.GateSkips[GateWorthReadingBelowThreshold]++
			continue
		}

		c := candidate{
			index:        i,
			article:      a,
			assessment:   as,
			personalized: PersonalizedScore(as.QualityScore, as.PrimaryType, typeMultipliers, blend),
		}
		if as.Worth == news.WorthMustRead {
			mustRead = append(mustRead, c)
		} else {
			worthReading = append(worthReading, c)
		}
	}
	diag.MustReadCandidates = len(mustRead)
	diag.WorthReadingCandidates = len(worthReading)

	if len(typeMultipliers) > 0 && blend > 0 {
		mustRead, diag.MustReadReordered = reorder(mustRead, opts.QualityGapGuard)
		worthReading, diag.WorthReadingReordered = reorder(worthReading, opts.QualityGapGuard)
	}

	res := Result{Highlights: []news.ScoredArticle{}, Reservations: map[string]int{}}
	maxDup := max(1, opts.MaxDuplicatesPerDigest)
	for _, list := range [][]candidate{mustRead, worthReading} {
		for _, c := range list {
			if len(res.Highlights) >= diag.SelectionCap {
				break
			}
			key := dedupe.InfoKey(c.article, opts.TrackingPrefixes)
			if opts.RepeatGuardEnabled && history[key]+res.Reservations[key] >= maxDup {
				diag.RepeatBlocked++
				diag.RepeatBlockedKeys = append(diag.RepeatBlockedKeys, key)
				continue
			}
			res.Reservations[key]++
			res.Highlights = append(res.Highlights, scoredArticle(c, key))
		}
	}
	diag.Selected = len(res.Highlights)
	res.Diagnostics = diag
	return res
}

// SelectionCap is clamp(max(MinCount, round(eligible*ratio)), 1, TopN) with the ratio
// clamped to [0.05, 1].
func SelectionCap(eligible int, opts Options) int {
	ratio := min(1, max(0.05, opts.SelectionRatio))
	capped := max(max(1, opts.MinCount), int(math.Round(float64(eligible)*ratio)))
	return max(1, min(opts.TopN, capped))
}

// PersonalizedScore is quality*(1 + (multiplier-1)*blend). Types without a multiplier
// keep their raw score.
func PersonalizedScore(quality float64, primaryType string, multipliers map[string]float64, blend float64) float64 {
	m, ok := multipliers[primaryType]
	if !ok || blend <= 0 {
		return quality
	}
	return quality * (1 + (m-1)*blend)
}

// Percentile interpolates linearly between the closest ranks, p in [0, 100].
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := float64(len(sorted)-1) * p / 100
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	w := idx - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func scoredArticle(c candidate, key string) news.ScoredArticle {
	return news.ScoredArticle{
		Article:        c.article,
		Score:          c.personalized,
		QualityScore:   c.assessment.QualityScore,
		Worth:          c.assessment.Worth,
		Confidence:     c.assessment.Confidence,
		PrimaryType:    c.assessment.PrimaryType,
		OneLineSummary: c.assessment.OneLineSummary,
		Reason:         c.assessment.Reason,
		ActionHint:     c.assessment.ActionHint,
		InfoKey:        key,
	}
}
