package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("0 8 * * *", "Mars/Olympus", func(context.Context) {})
	assert.Error(t, err)

	_, err = New("not a spec", "UTC", func(context.Context) {})
	assert.Error(t, err)
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := New("0 8 * * *", "Europe/Copenhagen", func(context.Context) {})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	next := s.Next()
	require.False(t, next.IsZero())
	loc, _ := time.LoadLocation("Europe/Copenhagen")
	assert.Equal(t, 8, next.In(loc).Hour())
	assert.Equal(t, 0, next.In(loc).Minute())
}

func TestScheduler_StopCancelsJob(t *testing.T) {
	var started, cancelled atomic.Bool
	s, err := New("@every 1s", "UTC", func(ctx context.Context) {
		started.Store(true)
		<-ctx.Done()
		cancelled.Store(true)
	})
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, started.Load, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	assert.True(t, cancelled.Load())
}
