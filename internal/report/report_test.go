package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsdigest/internal/dedupe"
	"github.com/deusflow/newsdigest/internal/fetchplan"
	"github.com/deusflow/newsdigest/internal/highlight"
	"github.com/deusflow/newsdigest/internal/news"
)

func TestDistribute(t *testing.T) {
	pool := []news.Article{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "unassessed"}}
	assessments := map[string]news.Assessment{
		"a": {Worth: news.WorthMustRead, QualityScore: 80, Confidence: 0.9, PrimaryType: "research"},
		"b": {Worth: news.WorthSkip, QualityScore: 20, Confidence: 0.5, PrimaryType: "other"},
		"c": {Worth: news.WorthSkip, QualityScore: 40, Confidence: 0.7, PrimaryType: "other"},
		"d": {Worth: news.WorthReading, QualityScore: 60, Confidence: 0.6, PrimaryType: "research"},
	}

	d := Distribute(pool, assessments)

	assert.Equal(t, map[news.Worth]int{news.WorthMustRead: 1, news.WorthSkip: 2, news.WorthReading: 1}, d.WorthCounts)
	assert.Equal(t, map[string]int{"research": 2, "other": 2}, d.TypeCounts)
	assert.Equal(t, 50.0, d.QualityPercentiles["p50"])
	assert.Equal(t, 26.0, d.QualityPercentiles["p10"])
	assert.Equal(t, 0.65, d.ConfidencePercentiles["p50"])
	assert.Equal(t, 50.0, d.AvgQuality)
	assert.Equal(t, 0.5, d.SkipRate)
}

func TestRiskFlags(t *testing.T) {
	r := Report{
		DedupedCount: 50,
		Dedupe:       dedupe.Stats{URLDuplicates: 6, TitleDuplicates: 4},
		Allocation:   fetchplan.Allocation{ExplorationShortfall: 2},
		Distribution: Distribution{SkipRate: 0.72},
		Selection: highlight.Diagnostics{
			Selected:      4,
			RepeatBlocked: 1,
			GateSkips:     map[string]int{highlight.GateLowConfidence: 7},
		},
	}

	var codes []string
	for _, f := range RiskFlags(r) {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{"few_selected", "high_skip_rate", "low_confidence_drops", "repeat_blocked", "high_duplicate_rate", "exploration_shortfall"}, codes)

	healthy := Report{
		DedupedCount: 50,
		Dedupe:       dedupe.Stats{URLDuplicates: 3},
		Distribution: Distribution{SkipRate: 0.3},
		Selection:    highlight.Diagnostics{Selected: 10, GateSkips: map[string]int{highlight.GateLowConfidence: 2}},
	}
	assert.Empty(t, RiskFlags(healthy))
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, Report{
		RunID:   "run-1",
		Date:    "2026-04-20",
		Outcome: "completed",
		Sources: []SourceRow{{SourceID: "low", Priority: 10}, {SourceID: "high", Priority: 90}},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-04-20", FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "high", got.Sources[0].SourceID)
}
