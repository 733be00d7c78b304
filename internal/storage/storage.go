// Package storage persists the state carried between runs: per-source quality scores,
// cumulative repeat counters per information key and the assessment cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/news"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Snapshot is the history read at run start.
type Snapshot struct {
	SourceQuality map[string]news.SourceQuality `json:"source_quality"`
	RepeatCounts  map[string]int                `json:"repeat_counts"`
}

// WriteBack is everything a completed run hands back for persistence.
type WriteBack struct {
	At            time.Time            `json:"at"`
	SourceQuality []news.SourceQuality `json:"source_quality"`
	Reservations  map[string]int       `json:"reservations"`
}

// Store is the historical store plus the persistent assessment cache.
type Store interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	SaveWriteBack(ctx context.Context, wb WriteBack) error

	GetAssessment(ctx context.Context, cacheKey string) (news.Assessment, bool, error)
	PutAssessment(ctx context.Context, a news.Assessment) error
	// PruneAssessments keeps the most recent keep rows and returns how many were removed.
	PruneAssessments(ctx context.Context, keep int) (int, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		fs := NewFileStore(cfg.Path, cfg.RepeatWindow)
		if err := fs.Load(); err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		return OpenSQL(ctx, "sqlite", cfg.Path, cfg.RepeatWindow)
	case "postgres":
		return OpenSQL(ctx, "postgres", cfg.DSN, cfg.RepeatWindow)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

func emptySnapshot() Snapshot {
	return Snapshot{SourceQuality: map[string]news.SourceQuality{}, RepeatCounts: map[string]int{}}
}

// stale reports whether a counter last seen at lastSeen falls outside the window.
func stale(lastSeen, now time.Time, window time.Duration) bool {
	return window > 0 && lastSeen.Before(now.Add(-window))
}
