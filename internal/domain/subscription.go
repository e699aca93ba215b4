package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SubscriptionStatus is the lifecycle state of a customer subscription
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusExpired   SubscriptionStatus = "expired"
)

// AllSubscriptionStatuses lists every valid status in display order
var AllSubscriptionStatuses = []SubscriptionStatus{StatusPending, StatusActive, StatusSuspended, StatusExpired}

// Valid reports whether s is a known status
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusExpired:
		return true
	}
	return false
}

// Expirable statuses are the ones the reconciler may move to expired.
var ExpirableStatuses = []SubscriptionStatus{StatusActive, StatusPending}

type statusTransition struct {
	from SubscriptionStatus
	to   SubscriptionStatus
}

// Transitions applied by status writes. Leaving expired is only possible
// through a renewal, which is not a plain status write.
var allowedTransitions = map[statusTransition]bool{
	{StatusPending, StatusActive}:   true, // payment confirmed
	{StatusPending, StatusExpired}:  true, // reconciler
	{StatusActive, StatusSuspended}: true, // admin suspend
	{StatusActive, StatusExpired}:   true, // reconciler
	{StatusSuspended, StatusActive}: true, // admin re-activate
	{StatusExpired, StatusExpired}:  true, // idempotent re-expire
}

// CanTransition reports whether a status write from -> to is allowed
func CanTransition(from, to SubscriptionStatus) bool {
	return allowedTransitions[statusTransition{from, to}]
}

// SourcesFor returns every status that may legally move to target.
func SourcesFor(target SubscriptionStatus) []SubscriptionStatus {
	var sources []SubscriptionStatus
	for _, s := range AllSubscriptionStatuses {
		if s != target && CanTransition(s, target) {
			sources = append(sources, s)
		}
	}
	return sources
}

// RenewalRecord is one append-only entry in a subscription's renewal history
type RenewalRecord struct {
	RenewalDate     time.Time `bson:"renewal_date" json:"renewal_date"`
	PreviousEndDate time.Time `bson:"previous_end_date" json:"previous_end_date"`
	NewEndDate      time.Time `bson:"new_end_date" json:"new_end_date"`
	RenewedBy       string    `bson:"renewed_by" json:"renewed_by"`
}

// Subscription is one customer's enrollment in one package for a bounded window
type Subscription struct {
	ID             string             `bson:"_id,omitempty" json:"id"`
	CustomerID     string             `bson:"customer_id" json:"customer_id"`
	PackageID      string             `bson:"package_id" json:"package_id"`
	BranchID       string             `bson:"branch_id" json:"branch_id"`
	StartDate      time.Time          `bson:"start_date" json:"start_date"`
	EndDate        time.Time          `bson:"end_date" json:"end_date"`
	Status         SubscriptionStatus `bson:"status" json:"status"`
	AutoRenewal    bool               `bson:"auto_renewal" json:"auto_renewal"`
	RenewalHistory []RenewalRecord    `bson:"renewal_history" json:"renewal_history"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// Validate checks the creation invariants
func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if s.PackageID == "" {
		return fmt.Errorf("%w: package id is required", ErrValidation)
	}
	if s.EndDate.IsZero() {
		return fmt.Errorf("%w: end date is required", ErrValidation)
	}
	if !s.EndDate.After(s.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, s.Status)
	}
	return nil
}

// CalculateNewEndDate calculates the new subscription end date based on stacking logic.
// If currentEnd is after now, the new date extends from currentEnd.
// Otherwise the new date starts from now.
func CalculateNewEndDate(now time.Time, currentEnd *time.Time, durationMonths int) time.Time {
	if currentEnd != nil && currentEnd.After(now) {
		return currentEnd.AddDate(0, durationMonths, 0)
	}
	return now.AddDate(0, durationMonths, 0)
}

// WriteResult describes the outcome of a guarded status write
type WriteResult int

const (
	// WriteApplied means the status was changed by this call.
	WriteApplied WriteResult = iota
	// WriteNoop means the record already had the target status.
	WriteNoop
	// WriteNotFound means the record no longer exists.
	WriteNotFound
	// WriteConflict means the record moved to a status outside the expected
	// sources before the write landed.
	WriteConflict
)

func (r WriteResult) String() string {
	switch r {
	case WriteApplied:
		return "applied"
	case WriteNoop:
		return "noop"
	case WriteNotFound:
		return "not_found"
	case WriteConflict:
		return "conflict"
	}
	return "unknown"
}

// ErrStoreUnavailable marks infrastructure failures that make a whole
// reconciliation run impossible.
var ErrStoreUnavailable = errors.New("subscription store unavailable")

// SubscriptionRepository defines operations for managing subscriptions
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) ([]*Subscription, error)
	GetCurrentByCustomerID(ctx context.Context, customerID string) (*Subscription, error)

	// FindExpiringSoon returns active subscriptions whose end date lies in [start, end].
	FindExpiringSoon(ctx context.Context, start, end time.Time) ([]*Subscription, error)
	// FindExpiringToday returns active or pending subscriptions whose end date lies in [start, end].
	FindExpiringToday(ctx context.Context, start, end time.Time) ([]*Subscription, error)
	// FindOverdue returns active or pending subscriptions whose end date is before the given instant.
	FindOverdue(ctx context.Context, before time.Time) ([]*Subscription, error)

	// MarkExpired sets status to expired. When guarded, the write only lands
	// while the stored status is still active or pending.
	MarkExpired(ctx context.Context, id string, guarded bool) (WriteResult, error)
	// SetStatus moves a subscription to status "to" only if its current status is in from.
	SetStatus(ctx context.Context, id string, from []SubscriptionStatus, to SubscriptionStatus) (WriteResult, error)
	// Renew moves end date forward, appends the renewal record and activates the
	// subscription, provided the stored end date still equals record.PreviousEndDate.
	Renew(ctx context.Context, id string, record RenewalRecord) (WriteResult, error)

	CountByStatus(ctx context.Context, scope Scope) (map[SubscriptionStatus]int64, error)
}
