// Package clickstats reads per-day reader click counts grouped by source and by article
// type.
package clickstats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/news"
)

// MaxDays is the longest window a backend will return.
const MaxDays = 120

// ErrUnauthorized is returned when the tracker rejects the token.
var ErrUnauthorized = errors.New("click stats: unauthorized")

// Reader returns key -> ISO date -> clicks for the last days days.
type Reader interface {
	SourceClicks(ctx context.Context, days int) (news.ClickSeries, error)
	TypeClicks(ctx context.Context, days int) (news.ClickSeries, error)
}

// New builds the reader named by cfg.Backend.
func New(cfg config.ClickStats) (Reader, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "redis":
		return NewRedisReader(cfg.RedisURL)
	case "http":
		return NewHTTPReader(cfg.TrackerURL, cfg.TrackerToken, cfg.Timeout), nil
	}
	return nil, fmt.Errorf("unknown click stats backend %q", cfg.Backend)
}

// Noop reports no clicks.
type Noop struct{}

func (Noop) SourceClicks(context.Context, int) (news.ClickSeries, error) { return news.ClickSeries{}, nil }
func (Noop) TypeClicks(context.Context, int) (news.ClickSeries, error)   { return news.ClickSeries{}, nil }

func clampDays(days int) int {
	return max(1, min(days, MaxDays))
}

// add accumulates positive counts for non-empty keys and dates.
func add(series news.ClickSeries, key, date string, clicks int) {
	key, date = strings.TrimSpace(key), strings.TrimSpace(date)
	if key == "" || date == "" || clicks <= 0 {
		return
	}
	if series[key] == nil {
		series[key] = map[string]int{}
	}
	series[key][date] += clicks
}
