package domain

import (
	"context"
	"time"
)

// ReconciliationReport summarises one lifecycle reconciliation run.
// Every status mutation performed by the run is listed in ExpiredTodayIDs.
type ReconciliationReport struct {
	RunID    string    `json:"run_id"`
	Now      time.Time `json:"now"`
	Timezone string    `json:"timezone"`

	Today   DayWindow `json:"today"`
	Horizon DayWindow `json:"horizon"`

	ExpiringSoonCount int      `json:"expiring_soon_count"`
	ExpiringSoonIDs   []string `json:"expiring_soon_ids"`
	ExpiredTodayCount int      `json:"expired_today_count"`
	ExpiredTodayIDs   []string `json:"expired_today_ids"`

	// OverdueCount is how many of ExpiredTodayIDs had an end date before today.
	OverdueCount int `json:"overdue_count"`
	// SkippedIDs were selected but needed no write: deleted, already expired,
	// or moved to another status concurrently.
	SkippedIDs []string `json:"skipped_ids"`
	// FailedIDs had a write error and are retried on the next run.
	FailedIDs []string `json:"failed_ids"`

	// Complete is false when the run was aborted or timed out part way.
	Complete   bool      `json:"complete"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ExpiringSoonNotice is handed to the external notifier for every
// subscription that ends on the horizon day.
type ExpiringSoonNotice struct {
	RunID          string    `json:"run_id"`
	SubscriptionID string    `json:"subscription_id"`
	CustomerID     string    `json:"customer_id"`
	PackageID      string    `json:"package_id"`
	BranchID       string    `json:"branch_id"`
	EndDate        time.Time `json:"end_date"`
	AutoRenewal    bool      `json:"auto_renewal"`
}

// ExpiryNotifier delivers expiring-soon notices to whatever sends reminders
type ExpiryNotifier interface {
	NotifyExpiringSoon(ctx context.Context, notices []ExpiringSoonNotice) error
}

// RunLock keeps reconciliation runs from overlapping across processes
type RunLock interface {
	// TryAcquire returns false without error when another holder owns the lock.
	TryAcquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, owner string) error
}

// ReportStore keeps the most recent reconciliation report for operators
type ReportStore interface {
	SaveLastReport(ctx context.Context, report *ReconciliationReport) error
	GetLastReport(ctx context.Context) (*ReconciliationReport, error)
}
