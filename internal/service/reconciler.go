package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ReconcilerOptions tune a Reconciler. Zero values fall back to defaults.
type ReconcilerOptions struct {
	Location    *time.Location
	HorizonDays int
	Workers     int
	RunTimeout  time.Duration
	// CatchUpOverdue also expires active/pending subscriptions whose end date
	// fell on an earlier day that no run covered.
	CatchUpOverdue bool
	// CompareAndSwap guards each write on the status the record was selected with.
	CompareAndSwap bool
	LockTTL        time.Duration
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.HorizonDays < 1 {
		o.HorizonDays = 2
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 15 * time.Minute
	}
	return o
}

// StatsInvalidator drops cached analytics that depend on subscription status
type StatsInvalidator interface {
	InvalidateSubscriptionStats(ctx context.Context) error
}

// ReconcilerDeps are the collaborators of a Reconciler. Only Repo is required.
type ReconcilerDeps struct {
	Repo     domain.SubscriptionRepository
	Notifier domain.ExpiryNotifier
	Lock     domain.RunLock
	Reports  domain.ReportStore
	Cache    StatsInvalidator
	Metrics  *telemetry.ReconcilerMetrics
	Logger   *slog.Logger
}

// Reconciler keeps subscription status consistent with calendar time.
type Reconciler struct {
	deps    ReconcilerDeps
	opts    ReconcilerOptions
	logger  *slog.Logger
	tracer  trace.Tracer
	running atomic.Bool
}

func NewReconciler(deps ReconcilerDeps, opts ReconcilerOptions) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger.With("component", "reconciler"),
		tracer: otel.Tracer("isp-admin/reconciler"),
	}
}

// Location returns the operational timezone used for day boundaries
func (r *Reconciler) Location() *time.Location {
	return r.opts.Location
}

// expireOutcome is the bookkeeping for one write attempt
type expireOutcome struct {
	sub    *domain.Subscription
	result domain.WriteResult
	err    error
}

// Reconcile classifies subscriptions relative to now and expires the ones
// whose end date has been reached. It never runs concurrently with itself.
//
// The returned report is non-nil whenever the run started. A nil error means
// the run completed; per-record write failures are listed in the report.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (*domain.ReconciliationReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer r.running.Store(false)

	started := time.Now()
	// run ids come from wall time; now may be any instant
	runID := ulid.Make().String()
	logger := r.logger.With("run_id", runID)

	if r.deps.Lock != nil {
		ok, err := r.deps.Lock.TryAcquire(ctx, runID, r.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			logger.Info("another instance holds the reconciler lock, skipping run")
			return nil, domain.ErrRunInProgress
		}
		defer func() {
			if err := r.deps.Lock.Release(context.WithoutCancel(ctx), runID); err != nil {
				logger.Warn("failed to release reconciler lock", "error", err)
			}
		}()
	}

	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "reconciler.Reconcile",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("timezone", r.opts.Location.String()),
		),
	)
	defer span.End()

	windows := domain.WindowsFor(now, r.opts.Location, r.opts.HorizonDays)
	report := &domain.ReconciliationReport{
		RunID:           runID,
		Now:             now.In(r.opts.Location),
		Timezone:        r.opts.Location.String(),
		Today:           windows.Today,
		Horizon:         windows.Horizon,
		ExpiringSoonIDs: []string{},
		ExpiredTodayIDs: []string{},
		SkippedIDs:      []string{},
		FailedIDs:       []string{},
		StartedAt:       started,
	}

	logger.Info("reconciliation started",
		"now", report.Now,
		"today", windows.Today.Start.Format(time.DateOnly),
		"horizon", windows.Horizon.Start.Format(time.DateOnly),
	)

	expiringSoon, toExpire, err := r.classify(ctx, windows)
	if err != nil {
		r.finish(ctx, logger, span, report, started)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("reconciliation aborted during classification", "error", err)
		r.deps.Metrics.RecordRun(ctx, "failed", 0, 0, 0, time.Since(started))
		return report, fmt.Errorf("reconciliation run aborted: %w", err)
	}

	for _, sub := range expiringSoon {
		report.ExpiringSoonIDs = append(report.ExpiringSoonIDs, sub.ID)
	}
	r.notify(ctx, logger, runID, expiringSoon)

	abortErr := r.expireAll(ctx, logger, windows, toExpire, report)

	if len(report.ExpiredTodayIDs) > 0 && r.deps.Cache != nil {
		if err := r.deps.Cache.InvalidateSubscriptionStats(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to invalidate subscription stats cache", "error", err)
		}
	}

	report.Complete = abortErr == nil && ctx.Err() == nil
	r.finish(ctx, logger, span, report, started)

	outcome := "complete"
	if !report.Complete {
		outcome = "incomplete"
	}
	r.deps.Metrics.RecordRun(ctx, outcome, report.ExpiredTodayCount, report.ExpiringSoonCount, len(report.FailedIDs), time.Since(started))

	if !report.Complete {
		cause := abortErr
		if cause == nil {
			cause = ctx.Err()
		}
		span.SetStatus(codes.Error, "incomplete")
		return report, fmt.Errorf("%w: %w", domain.ErrRunIncomplete, cause)
	}
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// classify runs the read-only queries in parallel. The expire set is today's
// matches plus, with catch-up enabled, every overdue record.
func (r *Reconciler) classify(ctx context.Context, w domain.ReconcileWindows) ([]*domain.Subscription, []*domain.Subscription, error) {
	var soon, today, overdue []*domain.Subscription

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		soon, err = r.deps.Repo.FindExpiringSoon(gCtx, w.Horizon.Start, w.Horizon.End)
		if err != nil {
			return fmt.Errorf("expiring-soon query: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		today, err = r.deps.Repo.FindExpiringToday(gCtx, w.Today.Start, w.Today.End)
		if err != nil {
			return fmt.Errorf("expire-today query: %w", err)
		}
		return nil
	})
	if r.opts.CatchUpOverdue {
		g.Go(func() error {
			var err error
			overdue, err = r.deps.Repo.FindOverdue(gCtx, w.Today.Start)
			if err != nil {
				return fmt.Errorf("overdue query: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(today)+len(overdue))
	toExpire := make([]*domain.Subscription, 0, len(today)+len(overdue))
	for _, sub := range slices.Concat(today, overdue) {
		if seen[sub.ID] {
			continue
		}
		seen[sub.ID] = true
		toExpire = append(toExpire, sub)
	}
	return soon, toExpire, nil
}

// expireAll writes each record independently on a bounded pool. A failed
// write is recorded and skipped; only an unavailable store or the run
// deadline stops the remaining writes.
func (r *Reconciler) expireAll(ctx context.Context, logger *slog.Logger, w domain.ReconcileWindows, subs []*domain.Subscription, report *domain.ReconciliationReport) error {
	writeCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	var (
		mu       sync.Mutex
		outcomes = make([]expireOutcome, 0, len(subs))
		g        errgroup.Group
	)
	g.SetLimit(r.opts.Workers)

	for _, sub := range subs {
		if writeCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if writeCtx.Err() != nil {
				return nil
			}
			res, err := r.deps.Repo.MarkExpired(writeCtx, sub.ID, r.opts.CompareAndSwap)
			if errors.Is(err, domain.ErrStoreUnavailable) {
				stop(err)
			}
			mu.Lock()
			outcomes = append(outcomes, expireOutcome{sub: sub, result: res, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		id := o.sub.ID
		if o.err != nil {
			report.FailedIDs = append(report.FailedIDs, id)
			logger.Error("failed to mark subscription expired", "subscription_id", id, "error", o.err)
			continue
		}
		switch o.result {
		case domain.WriteApplied:
			report.ExpiredTodayIDs = append(report.ExpiredTodayIDs, id)
			if o.sub.EndDate.Before(w.Today.Start) {
				report.OverdueCount++
			}
			logger.Debug("subscription marked expired", "subscription_id", id, "end_date", o.sub.EndDate)
		case domain.WriteConflict:
			report.SkippedIDs = append(report.SkippedIDs, id)
			logger.Warn("subscription status changed concurrently, leaving it alone", "subscription_id", id)
		default:
			report.SkippedIDs = append(report.SkippedIDs, id)
			logger.Debug("subscription needed no write", "subscription_id", id, "result", o.result.String())
		}
	}

	if cause := context.Cause(writeCtx); cause != nil && !errors.Is(cause, context.Canceled) && ctx.Err() == nil {
		return cause
	}
	return ctx.Err()
}

func (r *Reconciler) notify(ctx context.Context, logger *slog.Logger, runID string, subs []*domain.Subscription) {
	if r.deps.Notifier == nil || len(subs) == 0 {
		return
	}
	notices := make([]domain.ExpiringSoonNotice, 0, len(subs))
	for _, s := range subs {
		notices = append(notices, domain.ExpiringSoonNotice{
			RunID:          runID,
			SubscriptionID: s.ID,
			CustomerID:     s.CustomerID,
			PackageID:      s.PackageID,
			BranchID:       s.BranchID,
			EndDate:        s.EndDate,
			AutoRenewal:    s.AutoRenewal,
		})
	}
	if err := r.deps.Notifier.NotifyExpiringSoon(ctx, notices); err != nil {
		logger.Warn("failed to hand off expiring-soon notices", "count", len(notices), "error", err)
	}
}

// finish sorts and counts the report, stores it and writes the summary log line
func (r *Reconciler) finish(ctx context.Context, logger *slog.Logger, span trace.Span, report *domain.ReconciliationReport, started time.Time) {
	slices.Sort(report.ExpiringSoonIDs)
	slices.Sort(report.ExpiredTodayIDs)
	slices.Sort(report.SkippedIDs)
	slices.Sort(report.FailedIDs)
	report.ExpiringSoonCount = len(report.ExpiringSoonIDs)
	report.ExpiredTodayCount = len(report.ExpiredTodayIDs)

	elapsed := time.Since(started)
	report.FinishedAt = started.Add(elapsed)

	span.SetAttributes(
		attribute.Int("expiring_soon", report.ExpiringSoonCount),
		attribute.Int("expired_today", report.ExpiredTodayCount),
		attribute.Int("failed", len(report.FailedIDs)),
		attribute.Bool("complete", report.Complete),
	)

	if r.deps.Reports != nil {
		if err := r.deps.Reports.SaveLastReport(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn("failed to store reconciliation report", "error", err)
		}
	}

	level := slog.LevelInfo
	if !report.Complete || len(report.FailedIDs) > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "reconciliation finished",
		"expiring_soon", report.ExpiringSoonCount,
		"expired_today", report.ExpiredTodayCount,
		"overdue_caught_up", report.OverdueCount,
		"skipped", len(report.SkippedIDs),
		"failed", len(report.FailedIDs),
		"complete", report.Complete,
		"duration", elapsed,
	)
}
