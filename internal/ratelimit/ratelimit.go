// Package ratelimit paces evaluator calls and enforces the per-run request budget.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/deusflow/newsdigest/internal/logger"
)

// ErrBudgetExhausted is returned once the run has used all of its requests.
var ErrBudgetExhausted = errors.New("evaluation request budget exhausted")

// Limiter combines a per-minute token bucket with a hard request budget.
type Limiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRequests int
	used        int
}

// New returns a Limiter. maxRequests <= 0 means unlimited; perMinute <= 0 disables pacing.
func New(maxRequests, perMinute int) *Limiter {
	l := &Limiter{maxRequests: maxRequests}
	if perMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1)
	}
	return l
}

// Acquire reserves one request from the budget and waits for pacing.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.maxRequests > 0 && l.used >= l.maxRequests {
		l.mu.Unlock()
		return ErrBudgetExhausted
	}
	l.used++
	used := l.used
	l.mu.Unlock()

	logger.Debug("evaluator usage", "used", used, "max", l.maxRequests)
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Used is the number of requests drawn from the budget since the last Reset.
func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Reset starts a new budget. Pacing state is kept.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used = 0
}
