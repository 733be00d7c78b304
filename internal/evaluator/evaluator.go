// Package evaluator assesses articles with a language model behind a two-level cache.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/newsdigest/internal/cache"
	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/news"
	"github.com/deusflow/newsdigest/internal/ratelimit"
	"github.com/deusflow/newsdigest/internal/retry"
)

// ErrBudgetExhausted marks articles left unassessed because the request budget ran out.
var ErrBudgetExhausted = ratelimit.ErrBudgetExhausted

// AssessmentStore is the persistent side of the cache.
type AssessmentStore interface {
	GetAssessment(ctx context.Context, cacheKey string) (news.Assessment, bool, error)
	PutAssessment(ctx context.Context, a news.Assessment) error
	PruneAssessments(ctx context.Context, keep int) (int, error)
}

// Stats summarises one Evaluate call.
type Stats struct {
	Requested       int `json:"requested"`
	MemoryHits      int `json:"memory_hits"`
	StoreHits       int `json:"store_hits"`
	Evaluated       int `json:"evaluated"`
	Failed          int `json:"failed"`
	BudgetExhausted int `json:"budget_exhausted"`
	Pruned          int `json:"pruned"`
	// BackendCalls counts budgeted backend requests, retries included.
	BackendCalls int `json:"backend_calls"`
	MemoryCached int `json:"memory_cached"`
}

type Evaluator struct {
	backend       Backend
	store         AssessmentStore
	mem           *cache.Cache[news.Assessment]
	limiter       *ratelimit.Limiter
	retry         retry.RetryConfig
	timeout       time.Duration
	promptVersion string
	types         []string
	maxRows       int
}

func New(cfg config.Evaluator, backend Backend, store AssessmentStore, types []string) *Evaluator {
	return &Evaluator{
		backend:       backend,
		store:         store,
		mem:           cache.New[news.Assessment](cfg.CacheTTL, time.Hour),
		limiter:       ratelimit.New(cfg.MaxRequests, cfg.RequestsPerMinute),
		timeout:       cfg.RequestTimeout,
		promptVersion: cfg.PromptVersion,
		types:         normalizeTypes(types),
		maxRows:       cfg.CacheMaxRows,
		retry: retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
			Name:        "evaluate",
		},
	}
}

// Evaluate returns assessments keyed by article ID. Articles whose evaluation fails are
// absent from the map; the error return is reserved for context cancellation.
func (e *Evaluator) Evaluate(ctx context.Context, articles []news.Article) (map[string]news.Assessment, Stats, error) {
	out := make(map[string]news.Assessment, len(articles))
	stats := Stats{Requested: len(articles)}
	budgetGone := false
	e.limiter.Reset()

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		key := CacheKey(e.backend.Model(), e.promptVersion, a)

		if cached, ok := e.mem.Get(key); ok {
			cached.ArticleID = a.ID
			out[a.ID] = cached
			stats.MemoryHits++
			metrics.Evaluations.WithLabelValues("cache_hit").Inc()
			continue
		}
		if e.store != nil {
			cached, ok, err := e.store.GetAssessment(ctx, key)
			if err != nil {
				logger.Warn("assessment cache read failed", "article_id", a.ID, "error", err)
			} else if ok {
				cached.ArticleID = a.ID
				cached.CacheKey = key
				e.mem.Set(key, cached)
				out[a.ID] = cached
				stats.StoreHits++
					metrics.Evaluations.WithLabelValues("cache_hit").Inc()
				continue
			}
		}

		if budgetGone {
			stats.BudgetExhausted++
			continue
		}
		assessment, err := e.evaluateOne(ctx, a)
		switch {
		case errors.Is(err, ErrBudgetExhausted):
			budgetGone = true
			stats.BudgetExhausted++
			metrics.Evaluations.WithLabelValues("budget").Inc()
			logger.Warn("evaluation budget exhausted", "article_id", a.ID)
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, stats, ctxErr
			}
			stats.Failed++
			metrics.Evaluations.WithLabelValues("failed").Inc()
			logger.Warn("article evaluation failed", "article_id", a.ID, "source_id", a.SourceID, "error", err)
			continue
		}

		assessment.CacheKey = key
		e.mem.Set(key, assessment)
		if e.store != nil {
			if err := e.store.PutAssessment(ctx, assessment); err != nil {
				logger.Warn("assessment cache write failed", "article_id", a.ID, "error", err)
			}
		}
		out[a.ID] = assessment
		stats.Evaluated++
		metrics.Evaluations.WithLabelValues("evaluated").Inc()
	}

	if e.store != nil && e.maxRows > 0 {
		n, err := e.store.PruneAssessments(ctx, e.maxRows)
		if err != nil {
			logger.Warn("assessment cache prune failed", "error", err)
		}
		stats.Pruned = n
	}
	stats.BackendCalls = e.limiter.Used()
	stats.MemoryCached = e.mem.Len()
	metrics.EvaluatorRequests.Add(float64(stats.BackendCalls))
	logger.Info("evaluation finished",
		"requested", stats.Requested,
		"memory_hits", stats.MemoryHits,
		"store_hits", stats.StoreHits,
		"evaluated", stats.Evaluated,
		"failed", stats.Failed,
		"budget_exhausted", stats.BudgetExhausted,
		"backend_calls", stats.BackendCalls)
	return out, stats, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, a news.Article) (news.Assessment, error) {
	user, err := userPrompt(a)
	if err != nil {
		return news.Assessment{}, fmt.Errorf("build prompt: %w", err)
	}
	system := systemPrompt(e.types)

	var result news.Assessment
	err = retry.WithRetry(ctx, e.retry, func() error {
		if err := e.limiter.Acquire(ctx); err != nil {
			return retry.Permanent(err)
		}
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		raw, err := e.backend.Complete(callCtx, system, user)
		if err != nil {
			return err
		}
		result, err = ParseAssessment(a.ID, raw, e.types)
		return err
	})
	return result, err
}

// Close releases the backend and stops the cache cleanup loop.
func (e *Evaluator) Close() error {
	e.mem.Close()
	return e.backend.Close()
}
