// Package scheduler runs the digest on a cron schedule, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/newsdigest/internal/logger"
)

// Scheduler triggers job on a standard five-field cron spec. A trigger that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	job     func(ctx context.Context)
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(spec, timezone string, job func(ctx context.Context)) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		job:    job,
		ctx:    ctx,
		cancel: cancel,
	}
	entryID, err := s.cron.AddFunc(spec, s.runJob)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID
	return s, nil
}

func (s *Scheduler) runJob() {
	logger.Info("scheduled run triggered")
	s.job(s.ctx)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	logger.Info("scheduler started", "next_run", s.cron.Entry(s.entryID).Next)
}

// Stop cancels the running job's context and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	<-s.cron.Stop().Done()
}

// Next is the next scheduled trigger, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}
