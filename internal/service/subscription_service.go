package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/repository"
)

// SubscriptionService handles administrative subscription operations.
// Expiry is owned by the Reconciler; everything here is a guarded write.
type SubscriptionService struct {
	subRepo      domain.SubscriptionRepository
	customerRepo domain.CustomerRepository
	packageRepo  domain.PackageRepository
	reports      domain.ReportStore
	cache        AnalyticsCache
	clock        domain.Clock
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	subRepo domain.SubscriptionRepository,
	customerRepo domain.CustomerRepository,
	packageRepo domain.PackageRepository,
	reports domain.ReportStore,
	cache AnalyticsCache,
	clock domain.Clock,
) *SubscriptionService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &SubscriptionService{
		subRepo:      subRepo,
		customerRepo: customerRepo,
		packageRepo:  packageRepo,
		reports:      reports,
		cache:        cache,
		clock:        clock,
	}
}

// CreateSubscriptionRequest contains the params for enrolling a customer
type CreateSubscriptionRequest struct {
	CustomerID  string     `json:"customer_id" validate:"required"`
	PackageID   string     `json:"package_id" validate:"required"`
	StartDate   *time.Time `json:"start_date"`
	AutoRenewal bool       `json:"auto_renewal"`
	// Activate skips the pending state when payment is already confirmed.
	Activate bool `json:"activate"`
}

// Create enrolls a customer visible to scope in an active package.
// The end date is the start date plus the package duration.
func (s *SubscriptionService) Create(ctx context.Context, scope domain.Scope, req CreateSubscriptionRequest) (*domain.Subscription, error) {
	customer, err := s.customerRepo.GetByID(ctx, scope, req.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	pkg, err := s.packageRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if !pkg.IsActive {
		return nil, domain.ErrPackageInactive
	}

	start := s.clock.Now()
	if req.StartDate != nil {
		start = *req.StartDate
	}
	status := domain.StatusPending
	if req.Activate {
		status = domain.StatusActive
	}

	sub := &domain.Subscription{
		CustomerID:     customer.ID,
		PackageID:      pkg.ID,
		BranchID:       customer.BranchID,
		StartDate:      start,
		EndDate:        start.AddDate(0, pkg.DurationMonths, 0),
		Status:         status,
		AutoRenewal:    req.AutoRenewal,
		RenewalHistory: []domain.RenewalRecord{},
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, domain.ErrBadRequest.Wrap(err)
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	s.invalidateStats(ctx)
	return sub, nil
}

// Get returns a subscription visible to scope
func (s *SubscriptionService) Get(ctx context.Context, scope domain.Scope, id string) (*domain.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if !scope.Allows(sub.BranchID) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListByCustomer returns every subscription of a customer visible to scope
func (s *SubscriptionService) ListByCustomer(ctx context.Context, scope domain.Scope, customerID string) ([]*domain.Subscription, error) {
	if _, err := s.customerRepo.GetByID(ctx, scope, customerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	subs, err := s.subRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if subs == nil {
		subs = []*domain.Subscription{}
	}
	return subs, nil
}

// Suspend moves an active subscription to suspended
func (s *SubscriptionService) Suspend(ctx context.Context, scope domain.Scope, id string) (*domain.Subscription, error) {
	return s.transition(ctx, scope, id, domain.StatusSuspended)
}

// Activate moves a pending or suspended subscription to active
func (s *SubscriptionService) Activate(ctx context.Context, scope domain.Scope, id string) (*domain.Subscription, error) {
	return s.transition(ctx, scope, id, domain.StatusActive)
}

func (s *SubscriptionService) transition(ctx context.Context, scope domain.Scope, id string, to domain.SubscriptionStatus) (*domain.Subscription, error) {
	sub, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == to {
		return sub, nil
	}
	if !domain.CanTransition(sub.Status, to) {
		return nil, domain.ErrSubscriptionTransition.WithDetails(fmt.Sprintf("%s -> %s", sub.Status, to))
	}

	res, err := s.subRepo.SetStatus(ctx, id, []domain.SubscriptionStatus{sub.Status}, to)
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	switch res {
	case domain.WriteNotFound:
		return nil, domain.ErrSubscriptionNotFound
	case domain.WriteConflict:
		return nil, domain.ErrSubscriptionTransition.Wrap(domain.ErrConflict)
	}

	s.invalidateStats(ctx)
	sub.Status = to
	return sub, nil
}

// Renew extends a subscription by its package duration and activates it.
// The extension stacks on the current end date while it lies in the future.
func (s *SubscriptionService) Renew(ctx context.Context, scope domain.Scope, id, renewedBy string) (*domain.Subscription, error) {
	sub, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packageRepo.GetByID(ctx, sub.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if !pkg.IsActive {
		return nil, domain.ErrPackageInactive
	}

	now := s.clock.Now()
	currentEnd := sub.EndDate
	record := domain.RenewalRecord{
		RenewalDate:     now,
		PreviousEndDate: currentEnd,
		NewEndDate:      domain.CalculateNewEndDate(now, &currentEnd, pkg.DurationMonths),
		RenewedBy:       renewedBy,
	}

	res, err := s.subRepo.Renew(ctx, id, record)
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	switch res {
	case domain.WriteNotFound:
		return nil, domain.ErrSubscriptionNotFound
	case domain.WriteConflict:
		return nil, domain.ErrSubscriptionTransition.Wrap(domain.ErrConflict)
	}

	s.invalidateStats(ctx)
	sub.EndDate = record.NewEndDate
	sub.Status = domain.StatusActive
	sub.RenewalHistory = append(sub.RenewalHistory, record)
	return sub, nil
}

// SubscriptionStats are subscription counts per status
type SubscriptionStats struct {
	Total    int64                               `json:"total"`
	ByStatus map[domain.SubscriptionStatus]int64 `json:"by_status"`
}

// Stats returns subscription counts visible to scope, cached per branch
func (s *SubscriptionService) Stats(ctx context.Context, scope domain.Scope) (*SubscriptionStats, error) {
	key := repository.SubscriptionStatsKey(scopeKey(scope))
	return cached(ctx, s.cache, key, func(ctx context.Context) (*SubscriptionStats, error) {
		counts, err := s.subRepo.CountByStatus(ctx, scope)
		if err != nil {
			return nil, domain.ErrSystemDatabase.Wrap(err)
		}
		stats := &SubscriptionStats{ByStatus: counts}
		for _, n := range counts {
			stats.Total += n
		}
		return stats, nil
	})
}

// LastReconciliation returns the report of the most recent reconciliation run
func (s *SubscriptionService) LastReconciliation(ctx context.Context) (*domain.ReconciliationReport, error) {
	if s.reports == nil {
		return nil, domain.ErrNotFound
	}
	return s.reports.GetLastReport(ctx)
}

func (s *SubscriptionService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSubscriptionStats(ctx); err != nil {
		slog.Warn("failed to invalidate subscription stats", "error", err)
	}
}

// Packages lists the packages customers can subscribe to
func (s *SubscriptionService) Packages(ctx context.Context) ([]*domain.Package, error) {
	pkgs, err := s.packageRepo.GetActivePackages(ctx)
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if pkgs == nil {
		pkgs = []*domain.Package{}
	}
	return pkgs, nil
}
