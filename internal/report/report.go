// Package report writes the per-run analysis file.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/deusflow/newsdigest/internal/dedupe"
	"github.com/deusflow/newsdigest/internal/evaluator"
	"github.com/deusflow/newsdigest/internal/fetchplan"
	"github.com/deusflow/newsdigest/internal/highlight"
	"github.com/deusflow/newsdigest/internal/news"
)

// FileName is the analysis file written under <dir>/<date>/.
const FileName = "analysis.json"

// SourceRow is one source's line in the plan table.
type SourceRow struct {
	SourceID          string  `json:"source_id"`
	Priority          float64 `json:"priority"`
	CuratedPriority   float64 `json:"curated_priority"`
	HistoricalQuality float64 `json:"historical_quality"`
	BehaviorPriority  float64 `json:"behavior_priority"`
	Cap               int     `json:"cap"`
	Limit             int     `json:"limit"`
	Fetched           int     `json:"fetched"`
	Preferred         bool    `json:"preferred"`
	Error             string  `json:"error,omitempty"`
}

// Distribution summarises the assessed pool.
type Distribution struct {
	WorthCounts           map[news.Worth]int `json:"worth_counts"`
	TypeCounts            map[string]int     `json:"type_counts"`
	QualityPercentiles    map[string]float64 `json:"quality_percentiles"`
	ConfidencePercentiles map[string]float64 `json:"confidence_percentiles"`
	AvgQuality            float64            `json:"avg_quality"`
	AvgConfidence         float64            `json:"avg_confidence"`
	SkipRate              float64            `json:"skip_rate"`
}

// Flag is one rule-based risk signal.
type Flag struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the content of analysis.json.
type Report struct {
	RunID             string                `json:"run_id"`
	Date              string                `json:"date"`
	Timezone          string                `json:"timezone"`
	GeneratedAt       time.Time             `json:"generated_at"`
	Outcome           string                `json:"outcome"`
	FetchedCount      int                   `json:"fetched_count"`
	DedupedCount      int                   `json:"deduped_count"`
	EvaluatedCount    int                   `json:"evaluated_count"`
	Dedupe            dedupe.Stats          `json:"dedupe"`
	Sources           []SourceRow           `json:"sources"`
	Allocation        fetchplan.Allocation  `json:"allocation"`
	Evaluation        evaluator.Stats       `json:"evaluation"`
	Distribution      Distribution          `json:"distribution"`
	Selection         highlight.Diagnostics `json:"selection"`
	Highlights        []news.ScoredArticle  `json:"highlights"`
	SourceQuality     []news.SourceQuality  `json:"source_quality"`
	SourceMultipliers map[string]float64    `json:"source_multipliers"`
	TypeMultipliers   map[string]float64    `json:"type_multipliers"`
	Flags             []Flag                `json:"flags"`
}

// Distribute computes the pool distribution from the assessments of pool articles.
func Distribute(pool []news.Article, assessments map[string]news.Assessment) Distribution {
	d := Distribution{WorthCounts: map[news.Worth]int{}, TypeCounts: map[string]int{}}
	var quality, confidence []float64
	for _, a := range pool {
		as, ok := assessments[a.ID]
		if !ok {
			continue
		}
		d.WorthCounts[as.Worth]++
		d.TypeCounts[as.PrimaryType]++
		quality = append(quality, as.QualityScore)
		confidence = append(confidence, as.Confidence)
	}
	d.QualityPercentiles = percentiles(quality, 2, 10, 25, 50, 75, 90)
	d.ConfidencePercentiles = percentiles(confidence, 3, 10, 25, 50, 75, 90)
	d.AvgQuality = round(mean(quality), 2)
	d.AvgConfidence = round(mean(confidence), 3)
	if len(quality) > 0 {
		d.SkipRate = round(float64(d.WorthCounts[news.WorthSkip])/float64(len(quality)), 4)
	}
	return d
}

func percentiles(values []float64, places int, ps ...float64) map[string]float64 {
	out := make(map[string]float64, len(ps))
	for _, p := range ps {
		out[fmt.Sprintf("p%d", int(p))] = round(highlight.Percentile(values, p), places)
	}
	return out
}

// RiskFlags applies the rule set to a filled report. pool is the deduplicated count.
func RiskFlags(r Report) []Flag {
	pool := r.DedupedCount
	var flags []Flag
	if pool > 0 && r.Selection.Selected <= max(2, int(float64(pool)*0.08)) {
		flags = append(flags, Flag{"few_selected", "few highlights selected; lower the must-read threshold or widen source coverage"})
	}
	if r.Distribution.SkipRate >= 0.7 {
		flags = append(flags, Flag{"high_skip_rate", "most evaluated articles were skipped; prune or penalise low-quality sources"})
	}
	if r.Selection.GateSkips[highlight.GateLowConfidence] >= max(5, int(float64(pool)*0.15)) {
		flags = append(flags, Flag{"low_confidence_drops", "many candidates dropped for low confidence; review the evaluation prompt"})
	}
	if r.Selection.RepeatBlocked > 0 {
		flags = append(flags, Flag{"repeat_blocked", "the repeat guard blocked candidates; sources are converging on the same stories"})
	}
	if dups := r.Dedupe.URLDuplicates + r.Dedupe.TitleDuplicates; dups >= max(8, int(float64(pool)*0.2)) {
		flags = append(flags, Flag{"high_duplicate_rate", "deduplication removed many items; tighten aggregator sources"})
	}
	if r.Allocation.ExplorationShortfall > 0 {
		flags = append(flags, Flag{"exploration_shortfall", fmt.Sprintf("exploration fell %d slots short of its target", r.Allocation.ExplorationShortfall)})
	}
	return flags
}

// Write stores r as <dir>/<r.Date>/analysis.json and returns the path.
func Write(dir string, r Report) (string, error) {
	sort.SliceStable(r.Sources, func(i, j int) bool { return r.Sources[i].Priority > r.Sources[j].Priority })

	dayDir := filepath.Join(dir, r.Date)
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(dayDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
