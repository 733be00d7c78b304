// Package app runs one digest: plan, fetch, deduplicate, evaluate, curate, persist and report.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newsdigest/internal/clickstats"
	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/dedupe"
	"github.com/deusflow/newsdigest/internal/evaluator"
	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/news"
	"github.com/deusflow/newsdigest/internal/report"
	"github.com/deusflow/newsdigest/internal/rss"
	"github.com/deusflow/newsdigest/internal/storage"
	"github.com/deusflow/newsdigest/internal/telegram"
)

// Outcome is how a run ended. Halts are normal outcomes, not errors.
type Outcome string

const (
	OutcomeCompleted           Outcome = "completed"
	OutcomeHaltedEmptyPool     Outcome = "halted_empty_pool"
	OutcomeHaltedNoAssessments Outcome = "halted_no_assessments"
	OutcomeHaltedNoCandidates  Outcome = "halted_no_candidates"
)

func (o Outcome) Halted() bool { return o != OutcomeCompleted }

// Fetcher downloads sources up to their limits.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []news.SourceConfig, limits map[string]int) []rss.Result
}

// Evaluator assesses articles.
type Evaluator interface {
	Evaluate(ctx context.Context, articles []news.Article) (map[string]news.Assessment, evaluator.Stats, error)
}

// Result is what one run produced.
type Result struct {
	RunID      string
	Outcome    Outcome
	Highlights []news.ScoredArticle
	Report     report.Report
	ReportPath string
}

type Runner struct {
	cfg       *config.Config
	sources   []news.SourceConfig
	store     storage.Store
	clicks    clickstats.Reader
	fetcher   Fetcher
	evaluator Evaluator
	alerter   telegram.Alerter

	now   func() time.Time
	newID func() string
}

func NewRunner(cfg *config.Config, sources []news.SourceConfig, store storage.Store, clicks clickstats.Reader, fetcher Fetcher, ev Evaluator, alerter telegram.Alerter) *Runner {
	if clicks == nil {
		clicks = clickstats.Noop{}
	}
	if alerter == nil {
		alerter = telegram.Noop{}
	}
	return &Runner{
		cfg:       cfg,
		sources:   sources,
		store:     store,
		clicks:    clicks,
		fetcher:   fetcher,
		evaluator: ev,
		alerter:   alerter,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Run executes one digest. Errors are returned only for store and context failures.
// Runs halted before curation persist nothing; a run halted for lack of candidates
// persists source quality only.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := r.now()
	res := Result{RunID: r.newID()}
	log := logger.Logger.With("run_id", res.RunID)
	log.Info("run started", "sources", len(r.sources))

	loc, err := time.LoadLocation(r.cfg.App.Timezone)
	if err != nil {
		loc = time.UTC
	}
	rep := report.Report{
		RunID:       res.RunID,
		Date:        start.In(loc).Format("2006-01-02"),
		Timezone:    loc.String(),
		GeneratedAt: start.UTC(),
	}

	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("load history: %w", err)
	}
	sourceClicks, typeClicks := r.readClicks(ctx)

	plan := Plan(r.cfg, r.sources, snap, sourceClicks, start)
	rep.Allocation = plan.Allocation
	rep.SourceMultipliers = plan.SourceMultipliers
	if plan.Allocation.ExplorationShortfall > 0 {
		log.Warn("exploration target not met",
			"target", plan.Allocation.ExplorationTarget,
			"allocated", plan.Allocation.ExplorationAllocated,
			"shortfall", plan.Allocation.ExplorationShortfall)
	}
	log.Info("fetch planned", "sources", len(plan.Ranked), "allocated", plan.Allocation.Allocated, "preferred", len(plan.Preferred))

	fetched := r.fetcher.FetchAll(ctx, plan.Ordered(), plan.Allocation.Limits)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	var articles []news.Article
	byID := map[string]rss.Result{}
	for _, f := range fetched {
		byID[f.SourceID] = f
		articles = append(articles, f.Articles...)
	}
	rep.Sources = sourceRows(plan, byID)
	rep.FetchedCount = len(articles)

	deduped, stats := Deduplicate(r.cfg, articles)
	rep.Dedupe = stats
	rep.DedupedCount = len(deduped)
	metrics.DuplicatesDropped.WithLabelValues(dedupe.ReasonURLDuplicate).Add(float64(stats.URLDuplicates))
	metrics.DuplicatesDropped.WithLabelValues(dedupe.ReasonTitleSimilar).Add(float64(stats.TitleDuplicates))
	log.Info("deduplicated", "fetched", len(articles), "kept", len(deduped), "url_duplicates", stats.URLDuplicates, "title_duplicates", stats.TitleDuplicates)

	if len(deduped) == 0 {
		return r.finish(ctx, log, res, rep, OutcomeHaltedEmptyPool, start)
	}

	pool := Pool(deduped, r.cfg.Fetch.MaxEvalArticles)
	assessments, evalStats, err := r.evaluator.Evaluate(ctx, pool)
	if err != nil {
		return res, fmt.Errorf("evaluate: %w", err)
	}
	rep.Evaluation = evalStats
	rep.EvaluatedCount = len(assessments)
	rep.Distribution = report.Distribute(pool, assessments)
	if len(assessments) == 0 {
		return r.finish(ctx, log, res, rep, OutcomeHaltedNoAssessments, start)
	}

	curation, writeBack := Curate(r.cfg, snap, pool, assessments, typeClicks, start)
	rep.Selection = curation.Selection.Diagnostics
	rep.SourceQuality = curation.SourceQuality
	rep.TypeMultipliers = curation.TypeMultipliers
	rep.Highlights = curation.Selection.Highlights
	log.Info("highlights selected",
		"eligible", curation.Selection.Diagnostics.EligiblePool,
		"cap", curation.Selection.Diagnostics.SelectionCap,
		"selected", curation.Selection.Diagnostics.Selected,
		"repeat_blocked", curation.Selection.Diagnostics.RepeatBlocked,
		"effective_threshold", curation.Selection.Diagnostics.EffectiveThreshold)

	if curation.Selection.NoCandidates() {
		// Source quality still reflects this batch; there is nothing to reserve.
		writeBack.Reservations = map[string]int{}
		if err := r.store.SaveWriteBack(ctx, writeBack); err != nil {
			return res, fmt.Errorf("save history: %w", err)
		}
		return r.finish(ctx, log, res, rep, OutcomeHaltedNoCandidates, start)
	}

	if err := r.store.SaveWriteBack(ctx, writeBack); err != nil {
		return res, fmt.Errorf("save history: %w", err)
	}
	res.Highlights = curation.Selection.Highlights
	return r.finish(ctx, log, res, rep, OutcomeCompleted, start)
}

func (r *Runner) finish(ctx context.Context, log *slog.Logger, res Result, rep report.Report, outcome Outcome, start time.Time) (Result, error) {
	res.Outcome = outcome
	rep.Outcome = string(outcome)
	rep.Flags = report.RiskFlags(rep)
	if rep.Highlights == nil {
		rep.Highlights = []news.ScoredArticle{}
	}

	path, err := report.Write(r.cfg.App.OutputDir, rep)
	if err != nil {
		log.Warn("report not written", "error", err)
	}
	res.Report = rep
	res.ReportPath = path

	elapsed := r.now().Sub(start)
	metrics.Global.RecordRun(res.RunID, string(outcome), len(res.Highlights), elapsed)
	log.Info("run finished", "outcome", outcome, "selected", len(res.Highlights), "flags", len(rep.Flags), "report", path, "duration", elapsed)

	if outcome.Halted() {
		if err := r.alerter.Alert(ctx, "Digest run halted",
			"run: "+res.RunID,
			"outcome: "+string(outcome),
			fmt.Sprintf("fetched %d, deduped %d, evaluated %d", rep.FetchedCount, rep.DedupedCount, rep.EvaluatedCount),
		); err != nil {
			log.Warn("halt alert not delivered", "error", err)
		}
	}
	return res, nil
}

// readClicks degrades to empty series on any reader failure.
func (r *Runner) readClicks(ctx context.Context) (news.ClickSeries, news.ClickSeries) {
	days := max(r.cfg.Personalization.Source.LookbackDays, r.cfg.Personalization.Type.LookbackDays)

	sources, err := r.clicks.SourceClicks(ctx, days)
	if err != nil {
		logger.Warn("source clicks unavailable", "error", err)
		sources = news.ClickSeries{}
	}
	types, err := r.clicks.TypeClicks(ctx, days)
	if err != nil {
		logger.Warn("type clicks unavailable", "error", err)
		types = news.ClickSeries{}
	}
	return sources, types
}

func sourceRows(plan FetchPlan, fetched map[string]rss.Result) []report.SourceRow {
	rows := make([]report.SourceRow, 0, len(plan.Ranked))
	for _, rk := range plan.Ranked {
		id := rk.Source.ID
		row := report.SourceRow{
			SourceID:          id,
			Priority:          rk.Priority,
			CuratedPriority:   rk.CuratedPriority,
			HistoricalQuality: rk.HistoricalQuality,
			BehaviorPriority:  rk.BehaviorPriority,
			Cap:               plan.Caps[id],
			Limit:             plan.Allocation.Limits[id],
			Preferred:         plan.Preferred[id],
		}
		if f, ok := fetched[id]; ok {
			row.Fetched = len(f.Articles)
			if f.Err != nil {
				row.Error = f.Err.Error()
			}
		}
		rows = append(rows, row)
	}
	return rows
}
