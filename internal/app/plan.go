package app

import (
	"time"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/fetchplan"
	"github.com/deusflow/newsdigest/internal/news"
	"github.com/deusflow/newsdigest/internal/personalize"
	"github.com/deusflow/newsdigest/internal/storage"
)

// FetchPlan says how many items each source may contribute this run.
type FetchPlan struct {
	Ranked            []fetchplan.Ranked
	Caps              map[string]int
	Allocation        fetchplan.Allocation
	SourceMultipliers map[string]float64
	Preferred         map[string]bool
}

// Ordered returns the sources in priority order.
func (p FetchPlan) Ordered() []news.SourceConfig {
	out := make([]news.SourceConfig, len(p.Ranked))
	for i, r := range p.Ranked {
		out[i] = r.Source
	}
	return out
}

// Plan ranks sources and allocates the fetch budget. It has no side effects.
func Plan(cfg *config.Config, sources []news.SourceConfig, snap storage.Snapshot, sourceClicks news.ClickSeries, now time.Time) FetchPlan {
	p := FetchPlan{SourceMultipliers: map[string]float64{}, Preferred: map[string]bool{}}

	sp := cfg.Personalization.Source
	if sp.Enabled {
		p.SourceMultipliers = personalize.Multipliers(sourceClicks, multiplierOptions(sp), now)
		p.Preferred = personalize.PreferredSources(sourceClicks, cfg.Personalization.PreferredMinClicks, cfg.Personalization.PreferredTopQuantile)
	}

	p.Ranked = fetchplan.Prioritize(sources, snap.SourceQuality, p.SourceMultipliers, fetchplan.Bounds{Min: sp.MinMultiplier, Max: sp.MaxMultiplier})
	p.Caps = fetchplan.TierCaps(p.Ranked, fetchplan.TierLimits{
		High:   cfg.Fetch.HighCap,
		Medium: cfg.Fetch.MediumCap,
		Low:    cfg.Fetch.LowCap,
	})
	p.Allocation = fetchplan.Allocate(p.Ranked, p.Caps, fetchplan.Budget{
		Total:            cfg.Fetch.TotalBudget,
		MinPerSource:     cfg.Fetch.MinPerSource,
		ExplorationRatio: cfg.Fetch.ExplorationRatio,
	}, p.Preferred)
	return p
}

func multiplierOptions(m config.Multiplier) personalize.Options {
	return personalize.Options{
		LookbackDays:  m.LookbackDays,
		HalfLifeDays:  m.HalfLifeDays,
		MinMultiplier: m.MinMultiplier,
		MaxMultiplier: m.MaxMultiplier,
	}
}
