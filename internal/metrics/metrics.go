package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "runs_total",
			Help:      "Total number of digest runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsdigest",
			Name:      "run_duration_seconds",
			Help:      "Duration of digest runs in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	ArticlesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "articles_fetched_total",
			Help:      "Articles fetched per source",
		},
		[]string{"source"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "fetch_errors_total",
			Help:      "Failed source fetches",
		},
		[]string{"source"},
	)

	DuplicatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "duplicates_dropped_total",
			Help:      "Articles dropped by deduplication",
		},
		[]string{"reason"},
	)

	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "evaluations_total",
			Help:      "Article evaluations by result (cache_hit, evaluated, failed, budget)",
		},
		[]string{"result"},
	)

	EvaluatorRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "evaluator_requests_total",
			Help:      "Budgeted evaluator backend requests, retries included",
		},
	)

	HighlightsSelected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newsdigest",
			Name:      "highlights_selected",
			Help:      "Highlights selected by the last run",
		},
	)

	AlertsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsdigest",
			Name:      "alerts_sent_total",
			Help:      "Operator alerts delivered",
		},
	)
)

// Status is the health view served on /health.
type Status struct {
	mu sync.RWMutex

	LastRunID          string
	LastOutcome        string
	LastRunTime        time.Time
	LastProcessingTime time.Duration
	LastSelected       int
	LastErrorTime      time.Time
	LastError          string
	IsHealthy          bool
}

var Global = &Status{IsHealthy: true}

func (m *Status) RecordRun(runID, outcome string, selected int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunID = runID
	m.LastOutcome = outcome
	m.LastSelected = selected
	m.LastProcessingTime = duration
	m.LastRunTime = time.Now()
	m.IsHealthy = true

	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(duration.Seconds())
	HighlightsSelected.Set(float64(selected))
}

func (m *Status) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
	RunsTotal.WithLabelValues("failed").Inc()
}

func (m *Status) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Status) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"last_run_id":             m.LastRunID,
		"last_outcome":            m.LastOutcome,
		"last_selected":           m.LastSelected,
		"last_processing_time_ms": m.LastProcessingTime.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
