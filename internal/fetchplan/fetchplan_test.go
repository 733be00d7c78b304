package fetchplan

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsdigest/internal/news"
)

var testBounds = Bounds{Min: 0.85, Max: 1.2}

func rankedIDs(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Source.ID
	}
	return out
}

func sourcesN(n int) []news.SourceConfig {
	out := make([]news.SourceConfig, n)
	for i := range out {
		out[i] = news.SourceConfig{ID: fmt.Sprintf("s%d", i), SourceWeight: 1}
	}
	return out
}

func TestPrioritize_WeightWins(t *testing.T) {
	ranked := Prioritize([]news.SourceConfig{
		{ID: "a", SourceWeight: 1.0},
		{ID: "b", SourceWeight: 0.5},
	}, nil, nil, testBounds)

	assert.Equal(t, []string{"a", "b"}, rankedIDs(ranked))
	assert.Greater(t, ranked[0].Priority, ranked[1].Priority)
	assert.Equal(t, 50.0, ranked[0].HistoricalQuality)
}

func TestPrioritize_HistoryAndBehaviorLiftLaterSources(t *testing.T) {
	sources := []news.SourceConfig{
		{ID: "a", SourceWeight: 0.5},
		{ID: "b", SourceWeight: 0.5},
	}
	history := map[string]news.SourceQuality{
		"a": {SourceID: "a", QualityScore: 10},
		"b": {SourceID: "b", QualityScore: 95},
	}
	multipliers := map[string]float64{"a": 0.85, "b": 1.2}

	ranked := Prioritize(sources, history, multipliers, testBounds)

	// a: 100*.45 + 12.5 + 10*.15 + 0 = 59; b: 50*.45 + 12.5 + 95*.15 + 100*.15 = 64.25
	assert.Equal(t, []string{"b", "a"}, rankedIDs(ranked))
	assert.InDelta(t, 64.25, ranked[0].Priority, 1e-9)
	assert.InDelta(t, 59.0, ranked[1].Priority, 1e-9)
}

func TestBehaviorPriority(t *testing.T) {
	assert.InDelta(t, 0, BehaviorPriority(0.85, testBounds), 1e-9)
	assert.InDelta(t, 100, BehaviorPriority(1.2, testBounds), 1e-9)
	assert.InDelta(t, 100, BehaviorPriority(3, testBounds), 1e-9)
	assert.InDelta(t, 0, BehaviorPriority(0.1, testBounds), 1e-9)
	assert.Equal(t, 50.0, BehaviorPriority(1, Bounds{Min: 1, Max: 1}))
}

func TestTierCaps(t *testing.T) {
	ranked := Prioritize(sourcesN(6), nil, nil, testBounds)
	caps := TierCaps(ranked, DefaultTierLimits)
	got := make([]int, 0, len(ranked))
	for _, r := range ranked {
		got = append(got, caps[r.Source.ID])
	}
	assert.Equal(t, []int{30, 30, 22, 22, 12, 12}, got)

	two := Prioritize(sourcesN(2), nil, nil, testBounds)
	caps = TierCaps(two, DefaultTierLimits)
	assert.Equal(t, 30, caps[two[0].Source.ID])
	assert.Equal(t, 22, caps[two[1].Source.ID])

	assert.Empty(t, TierCaps(nil, DefaultTierLimits))
}

func limitsInOrder(ranked []Ranked, a Allocation) []int {
	out := make([]int, len(ranked))
	for i, r := range ranked {
		out[i] = a.Limits[r.Source.ID]
	}
	return out
}

func uniformCaps(ranked []Ranked, c int) map[string]int {
	caps := make(map[string]int, len(ranked))
	for _, r := range ranked {
		caps[r.Source.ID] = c
	}
	return caps
}

func TestAllocate_FloorThenProportional(t *testing.T) {
	ranked := Prioritize(sourcesN(5), nil, nil, testBounds)
	a := Allocate(ranked, uniformCaps(ranked, 30), DefaultBudget, nil)

	assert.Equal(t, []int{12, 12, 12, 12, 12}, limitsInOrder(ranked, a))
	assert.Equal(t, 60, a.Allocated)
}

func TestAllocate_BudgetSmallerThanSources(t *testing.T) {
	ranked := Prioritize(sourcesN(5), nil, nil, testBounds)
	a := Allocate(ranked, uniformCaps(ranked, 30), Budget{Total: 3, MinPerSource: 3}, nil)

	assert.Equal(t, []int{1, 1, 1, 0, 0}, limitsInOrder(ranked, a))
}

func TestAllocate_TruncationSweep(t *testing.T) {
	ranked := Prioritize(sourcesN(3), nil, nil, testBounds)
	a := Allocate(ranked, uniformCaps(ranked, 10), Budget{Total: 10}, nil)

	assert.Equal(t, []int{4, 3, 3}, limitsInOrder(ranked, a))
}

func TestAllocate_CapBelowFloor(t *testing.T) {
	ranked := Prioritize(sourcesN(3), nil, nil, testBounds)
	caps := uniformCaps(ranked, 30)
	caps[ranked[1].Source.ID] = 2
	a := Allocate(ranked, caps, Budget{Total: 9, MinPerSource: 3}, nil)

	got := limitsInOrder(ranked, a)
	assert.Equal(t, 2, got[1])
	assert.Equal(t, 9, a.Allocated)
}

func explorationFixture(exploratoryCap int) ([]Ranked, map[string]int, map[string]bool) {
	ranked := Prioritize([]news.SourceConfig{
		{ID: "p1", SourceWeight: 1},
		{ID: "p2", SourceWeight: 1},
		{ID: "e1", SourceWeight: 1},
		{ID: "e2", SourceWeight: 1},
	}, nil, nil, testBounds)
	caps := map[string]int{"p1": 30, "p2": 30, "e1": exploratoryCap, "e2": exploratoryCap}
	return ranked, caps, map[string]bool{"p1": true, "p2": true}
}

func TestAllocate_ExplorationTransfersFromLowestPreferred(t *testing.T) {
	ranked, caps, preferred := explorationFixture(30)
	a := Allocate(ranked, caps, Budget{Total: 20, MinPerSource: 1, ExplorationRatio: 0.75}, preferred)

	assert.Equal(t, map[string]int{"p1": 4, "p2": 1, "e1": 8, "e2": 7}, a.Limits)
	assert.Equal(t, 15, a.ExplorationTarget)
	assert.Equal(t, 15, a.ExplorationAllocated)
	assert.Zero(t, a.ExplorationShortfall)
	assert.Equal(t, 5, a.Transfers)
}

func TestAllocate_ExplorationShortfallIsReported(t *testing.T) {
	ranked, caps, preferred := explorationFixture(2)
	a := Allocate(ranked, caps, Budget{Total: 20, MinPerSource: 1, ExplorationRatio: 0.5}, preferred)

	assert.Equal(t, map[string]int{"p1": 10, "p2": 6, "e1": 2, "e2": 2}, a.Limits)
	assert.Equal(t, 10, a.ExplorationTarget)
	assert.Equal(t, 4, a.ExplorationAllocated)
	assert.Equal(t, 6, a.ExplorationShortfall)
	assert.Equal(t, 20, a.Allocated)
}

func TestAllocate_NoPreferredMeansNoExploration(t *testing.T) {
	ranked, caps, _ := explorationFixture(30)
	a := Allocate(ranked, caps, Budget{Total: 20, MinPerSource: 1, ExplorationRatio: 0.9}, nil)

	assert.Zero(t, a.Transfers)
	assert.Zero(t, a.ExplorationTarget)
}

func TestAllocate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(12)
		ranked := Prioritize(sourcesN(n), nil, nil, testBounds)
		caps := make(map[string]int, n)
		preferred := map[string]bool{}
		for _, r := range ranked {
			caps[r.Source.ID] = rng.Intn(40) - 2
			if rng.Intn(3) == 0 {
				preferred[r.Source.ID] = true
			}
		}
		budget := Budget{
			Total:            rng.Intn(120),
			MinPerSource:     rng.Intn(5),
			ExplorationRatio: rng.Float64(),
		}

		a := Allocate(ranked, caps, budget, preferred)

		sum := 0
		floorApplies := budget.Total >= n*budget.MinPerSource
		for _, r := range ranked {
			got := a.Limits[r.Source.ID]
			c := max(0, caps[r.Source.ID])
			require.GreaterOrEqual(t, got, 0)
			require.LessOrEqual(t, got, c, "iteration %d source %s", iter, r.Source.ID)
			if floorApplies && budget.Total > 0 {
				require.GreaterOrEqual(t, got, min(budget.MinPerSource, c), "iteration %d", iter)
			}
			sum += got
		}
		require.LessOrEqual(t, sum, budget.Total)
		require.Equal(t, sum, a.Allocated)
	}
}
