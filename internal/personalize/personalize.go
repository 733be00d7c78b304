// Package personalize turns reader click history into bounded ranking multipliers.
package personalize

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/newsdigest/internal/news"
)

// Options control one multiplier computation.
type Options struct {
	LookbackDays  int
	HalfLifeDays  float64
	MinMultiplier float64
	MaxMultiplier float64
}

// SourceDefaults and TypeDefaults are the stock settings for source and type multipliers.
var (
	SourceDefaults = Options{LookbackDays: 90, HalfLifeDays: 21, MinMultiplier: 0.85, MaxMultiplier: 1.2}
	TypeDefaults   = Options{LookbackDays: 90, HalfLifeDays: 21, MinMultiplier: 0.9, MaxMultiplier: 1.15}
)

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate accepts the date forms emitted by the click trackers. The result is in UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DecayWeight is 0.5^(age/halfLife); ages at or below zero and non-positive half-lives
// weigh 1.
func DecayWeight(ageDays int, halfLifeDays float64) float64 {
	if ageDays <= 0 || halfLifeDays <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(ageDays)/halfLifeDays)
}

// DecayedScores sums time-decayed clicks per key. Dates older than LookbackDays-1 days
// (by UTC calendar date) are excluded, future dates count as today and unparseable dates
// are skipped. Keys whose score is not positive are left out.
func DecayedScores(series news.ClickSeries, opts Options, now time.Time) map[string]float64 {
	maxAge := max(1, opts.LookbackDays) - 1
	today := utcDate(now)
	scores := make(map[string]float64, len(series))
	for key, daily := range series {
		score := 0.0
		for dateText, count := range daily {
			t, ok := ParseDate(dateText)
			if !ok {
				continue
			}
			age := max(0, int(today.Sub(utcDate(t)).Hours()/24))
			if age > maxAge {
				continue
			}
			score += float64(max(0, count)) * DecayWeight(age, opts.HalfLifeDays)
		}
		if score > 0 {
			scores[key] = score
		}
	}
	return scores
}

// Multipliers converts click history into multipliers around 1.0:
//
//	clamp(1 + 0.25*(score-baseline)/baseline, min, max)
//
// where baseline is the mean decayed score of the keys that have any clicks. Keys without
// clicks are absent; callers treat absent keys as 1.0.
func Multipliers(series news.ClickSeries, opts Options, now time.Time) map[string]float64 {
	scores := DecayedScores(series, opts, now)
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	baseline := total / float64(len(scores))

	lo := min(opts.MinMultiplier, opts.MaxMultiplier)
	hi := max(opts.MinMultiplier, opts.MaxMultiplier)
	for key, s := range scores {
		raw := 1 + 0.25*(s-baseline)/baseline
		out[key] = round4(min(hi, max(lo, raw)))
	}
	return out
}

// PreferredSources returns the sources whose raw click total reaches minClicks and ranks
// within the top quantile of those sources. At least one qualifying source is kept.
func PreferredSources(series news.ClickSeries, minClicks int, topQuantile float64) map[string]bool {
	type total struct {
		key    string
		clicks int
	}
	var totals []total
	for key, daily := range series {
		sum := 0
		for _, c := range daily {
			sum += max(0, c)
		}
		if sum >= minClicks {
			totals = append(totals, total{key: key, clicks: sum})
		}
	}

	preferred := make(map[string]bool)
	if len(totals) == 0 {
		return preferred
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].clicks != totals[j].clicks {
			return totals[i].clicks > totals[j].clicks
		}
		return totals[i].key < totals[j].key
	})
	quantile := min(1, max(0.01, topQuantile))
	keep := max(1, int(math.Ceil(float64(len(totals))*quantile)))
	for _, t := range totals[:min(keep, len(totals))] {
		preferred[t.key] = true
	}
	return preferred
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
