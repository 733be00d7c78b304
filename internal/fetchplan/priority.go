// Package fetchplan decides which sources are read first and how many items each may contribute.
package fetchplan

import (
	"sort"

	"github.com/deusflow/newsdigest/internal/news"
)

const neutralQuality = 50.0

// Ranked is a source with its composite priority and the components behind it.
type Ranked struct {
	Source            news.SourceConfig `json:"source"`
	Priority          float64           `json:"priority"`
	CuratedPriority   float64           `json:"curated_priority"`
	HistoricalQuality float64           `json:"historical_quality"`
	BehaviorPriority  float64           `json:"behavior_priority"`
}

// Bounds is the configured multiplier range used to rescale behavior multipliers.
type Bounds struct {
	Min float64
	Max float64
}

// Prioritize orders sources by
//
//	curated*0.45 + weight*100*0.25 + historicalQuality*0.15 + behavior*0.15
//
// where curated rewards earlier positions in the declared list. The sort is stable.
func Prioritize(sources []news.SourceConfig, history map[string]news.SourceQuality, multipliers map[string]float64, bounds Bounds) []Ranked {
	n := len(sources)
	ranked := make([]Ranked, 0, n)
	for i, src := range sources {
		curated := float64(n-i) / float64(n) * 100
		hist := neutralQuality
		if h, ok := history[src.ID]; ok {
			hist = h.QualityScore
		}
		m, ok := multipliers[src.ID]
		if !ok {
			m = 1
		}
		behavior := BehaviorPriority(m, bounds)

		ranked = append(ranked, Ranked{
			Source:            src,
			CuratedPriority:   curated,
			HistoricalQuality: hist,
			BehaviorPriority:  behavior,
			Priority:          curated*0.45 + src.SourceWeight*100*0.25 + hist*0.15 + behavior*0.15,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	return ranked
}

// BehaviorPriority maps a multiplier from [Min, Max] onto [0, 100].
func BehaviorPriority(multiplier float64, bounds Bounds) float64 {
	lo, hi := min(bounds.Min, bounds.Max), max(bounds.Min, bounds.Max)
	if hi-lo <= 0 {
		return neutralQuality
	}
	v := (multiplier - lo) / (hi - lo) * 100
	return min(100, max(0, v))
}

// TierLimits are the per-source caps for each rank tercile.
type TierLimits struct {
	High   int
	Medium int
	Low    int
}

// DefaultTierLimits are the stock caps for the high, medium and low terciles.
var DefaultTierLimits = TierLimits{High: 30, Medium: 22, Low: 12}

// TierCaps assigns caps by position in the prioritized list: the first third gets the
// high cap, up to two thirds the medium cap and the rest the low cap.
func TierCaps(ranked []Ranked, limits TierLimits) map[string]int {
	caps := make(map[string]int, len(ranked))
	if len(ranked) == 0 {
		return caps
	}
	highCutoff := max(1, len(ranked)/3)
	mediumCutoff := max(highCutoff+1, len(ranked)*2/3)
	for i, r := range ranked {
		switch {
		case i < highCutoff:
			caps[r.Source.ID] = limits.High
		case i < mediumCutoff:
			caps[r.Source.ID] = limits.Medium
		default:
			caps[r.Source.ID] = limits.Low
		}
	}
	return caps
}
