package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
)

// Reconciler is the job body driven by the scheduler
type Reconciler interface {
	Reconcile(ctx context.Context, now time.Time) (*domain.ReconciliationReport, error)
}

// TokenPurger removes refresh tokens past their expiry
type TokenPurger interface {
	PurgeExpired(ctx context.Context) error
}

// Options configure the jobs registered on a Manager
type Options struct {
	Location *time.Location
	// Schedule is a 5-field cron expression evaluated in Location.
	Schedule string
	// Every replaces Schedule with a fixed interval when non-zero.
	Every          time.Duration
	StartImmediate bool
	RunTimeout     time.Duration
}

// Manager owns the gocron scheduler and its registered jobs
type Manager struct {
	scheduler gocron.Scheduler
	opts      Options
	clock     domain.Clock
	logger    *slog.Logger
}

// NewManager creates a scheduler whose cron expressions are evaluated in opts.Location
func NewManager(opts Options, clock domain.Clock, logger *slog.Logger) (*Manager, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(opts.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Manager{
		scheduler: s,
		opts:      opts,
		clock:     clock,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

func (m *Manager) definition() gocron.JobDefinition {
	if m.opts.Every > 0 {
		return gocron.DurationJob(m.opts.Every)
	}
	return gocron.CronJob(m.opts.Schedule, false)
}

func (m *Manager) cadence() string {
	if m.opts.Every > 0 {
		return "every " + m.opts.Every.String()
	}
	return m.opts.Schedule
}

// RegisterReconciler schedules the subscription lifecycle job.
// A tick that fires while the previous run is still going is rescheduled
// rather than queued.
func (m *Manager) RegisterReconciler(r Reconciler) error {
	options := []gocron.JobOption{
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("subscription", "reconciler"),
		gocron.WithName("subscription-reconciler"),
	}
	if m.opts.StartImmediate {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := m.scheduler.NewJob(
		m.definition(),
		gocron.NewTask(func() {
			ctx := context.Background()
			if m.opts.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
				defer cancel()
			}
			m.reconcile(ctx, r)
		}),
		options...,
	)
	if err != nil {
		return fmt.Errorf("failed to register reconciler job: %w", err)
	}

	m.logger.Info("registered subscription reconciler job",
		"schedule", m.opts.Schedule,
		"every", m.opts.Every,
		"timezone", m.opts.Location.String(),
		"start_immediate", m.opts.StartImmediate,
	)
	return nil
}

// RegisterTokenPurge removes expired refresh tokens every hour
func (m *Manager) RegisterTokenPurge(p TokenPurger) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			m.purgeTokens(ctx, p)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("auth", "token-purge"),
		gocron.WithName("refresh-token-purge"),
	)
	if err != nil {
		return fmt.Errorf("failed to register token purge job: %w", err)
	}
	return nil
}

func (m *Manager) reconcile(ctx context.Context, r Reconciler) {
	startTime := time.Now()
	report, err := r.Reconcile(ctx, m.clock.Now())
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		m.logger.Info("reconciliation skipped, a run is already in progress")
	case err != nil && report != nil:
		m.logger.Error("reconciliation did not complete",
			"run_id", report.RunID,
			"expired", report.ExpiredTodayCount,
			"failed", len(report.FailedIDs),
			"error", err,
			"duration", time.Since(startTime),
		)
	case err != nil:
		m.logger.Error("reconciliation failed", "error", err, "duration", time.Since(startTime))
	default:
		m.logger.Info("reconciliation completed",
			"run_id", report.RunID,
			"expired", report.ExpiredTodayCount,
			"expiring_soon", report.ExpiringSoonCount,
			"skipped", len(report.SkippedIDs),
			"duration", time.Since(startTime),
		)
	}
}

func (m *Manager) purgeTokens(ctx context.Context, p TokenPurger) {
	if err := p.PurgeExpired(ctx); err != nil {
		m.logger.Error("failed to purge expired refresh tokens", "error", err)
		return
	}
	m.logger.Debug("expired refresh tokens purged")
}

// Start begins executing registered jobs
func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("scheduler started",
		"jobs", len(m.scheduler.Jobs()),
		"schedule", m.cadence(),
		"timezone", m.opts.Location.String(),
	)
}

// Shutdown stops the scheduler and waits for running jobs to return
func (m *Manager) Shutdown() error {
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	m.logger.Info("scheduler stopped")
	return nil
}

// RunNow triggers every job tagged with tag outside of its schedule
func (m *Manager) RunNow(tag string) error {
	for _, j := range m.scheduler.Jobs() {
		for _, t := range j.Tags() {
			if t == tag {
				if err := j.RunNow(); err != nil {
					return fmt.Errorf("failed to run job %s: %w", j.Name(), err)
				}
			}
		}
	}
	return nil
}
