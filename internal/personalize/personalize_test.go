package personalize

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsdigest/internal/news"
)

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) string {
	return now.AddDate(0, 0, -offset).Format("2006-01-02")
}

func TestDecayWeight(t *testing.T) {
	assert.Equal(t, 1.0, DecayWeight(0, 21))
	assert.Equal(t, 1.0, DecayWeight(-3, 21))
	assert.Equal(t, 1.0, DecayWeight(10, 0))
	assert.InDelta(t, 0.5, DecayWeight(21, 21), 1e-12)
	assert.InDelta(t, 0.25, DecayWeight(42, 21), 1e-12)
}

func TestDecayedScores_WindowAndBadDates(t *testing.T) {
	series := news.ClickSeries{
		"a": {day(0): 4, day(21): 4, day(89): 100, day(90): 1000, "garbage": 50, "": 1},
		"b": {day(-2): 3},
		"c": {day(5): 0, day(6): -4},
	}
	scores := DecayedScores(series, SourceDefaults, now)

	// day(90) is outside a 90-day window (max age 89); day(89) is inside.
	want := 4 + 4*0.5 + 100*DecayWeight(89, 21)
	assert.InDelta(t, want, scores["a"], 1e-9)
	assert.InDelta(t, 3.0, scores["b"], 1e-9)
	assert.NotContains(t, scores, "c")
}

func TestMultipliers_UniformClicksAreNeutral(t *testing.T) {
	series := news.ClickSeries{}
	for i := 0; i < 7; i++ {
		series[fmt.Sprintf("s%d", i)] = map[string]int{day(0): 3, day(4): 1, day(30): 7}
	}
	for key, m := range Multipliers(series, SourceDefaults, now) {
		assert.Equal(t, 1.0, m, key)
	}
}

func TestMultipliers_RelativeToBaseline(t *testing.T) {
	series := news.ClickSeries{
		"heavy": {day(0): 30},
		"mid":   {day(0): 20},
		"light": {day(0): 10},
		"none":  {day(0): 0},
	}
	m := Multipliers(series, Options{LookbackDays: 90, HalfLifeDays: 21, MinMultiplier: 0.5, MaxMultiplier: 2}, now)

	// baseline 20
	assert.Equal(t, 1.125, m["heavy"])
	assert.Equal(t, 1.0, m["mid"])
	assert.Equal(t, 0.875, m["light"])
	assert.NotContains(t, m, "none")
}

func TestMultipliers_ClampedAndEmpty(t *testing.T) {
	series := news.ClickSeries{
		"viral": {day(0): 1000},
		"quiet": {day(0): 1},
		"q2":    {day(0): 1},
	}
	m := Multipliers(series, SourceDefaults, now)
	assert.Equal(t, 1.2, m["viral"])
	assert.Equal(t, 0.85, m["quiet"])

	assert.Empty(t, Multipliers(news.ClickSeries{"x": {day(0): 0}}, SourceDefaults, now))
	assert.Empty(t, Multipliers(nil, SourceDefaults, now))
}

func TestMultipliers_AlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for iter := 0; iter < 200; iter++ {
		series := news.ClickSeries{}
		for k := 0; k < 1+rng.Intn(8); k++ {
			daily := map[string]int{}
			for d := 0; d < rng.Intn(10); d++ {
				daily[day(rng.Intn(120))] = rng.Intn(50)
			}
			series[fmt.Sprintf("k%d", k)] = daily
		}
		for _, m := range Multipliers(series, TypeDefaults, now) {
			require.GreaterOrEqual(t, m, TypeDefaults.MinMultiplier)
			require.LessOrEqual(t, m, TypeDefaults.MaxMultiplier)
		}
	}
}

func TestPreferredSources(t *testing.T) {
	series := news.ClickSeries{
		"a": {day(0): 10, day(200): 5},
		"b": {day(1): 8},
		"c": {day(2): 6},
		"d": {day(3): 4},
		"e": {day(4): 1},
	}

	// four qualify (>= 2 clicks); ceil(4*0.3) = 2
	assert.Equal(t, map[string]bool{"a": true, "b": true}, PreferredSources(series, 2, 0.3))
	assert.Len(t, PreferredSources(series, 2, 0), 1)
	assert.Len(t, PreferredSources(series, 2, 5), 4)
	assert.Empty(t, PreferredSources(series, 100, 0.3))
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2026-03-10", "20260310", "2026-03-10T23:00:00Z", "2026-03-10T08:00:00"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, 10, got.Day(), in)
	}
	_, ok := ParseDate("10/03/2026")
	assert.False(t, ok)
}
