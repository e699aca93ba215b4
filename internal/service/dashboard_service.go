package service

import (
	"context"
	"fmt"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardService aggregates the superadmin and branch dashboards
type DashboardService struct {
	branchRepo   domain.BranchRepository
	userRepo     domain.UserRepository
	customerRepo domain.CustomerRepository
	subRepo      domain.SubscriptionRepository
	ticketRepo   domain.TicketRepository
	cache        AnalyticsCache
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(
	branchRepo domain.BranchRepository,
	userRepo domain.UserRepository,
	customerRepo domain.CustomerRepository,
	subRepo domain.SubscriptionRepository,
	ticketRepo domain.TicketRepository,
	cache AnalyticsCache,
) *DashboardService {
	return &DashboardService{
		branchRepo:   branchRepo,
		userRepo:     userRepo,
		customerRepo: customerRepo,
		subRepo:      subRepo,
		ticketRepo:   ticketRepo,
		cache:        cache,
	}
}

// SuperAdminDashboard is the platform-wide summary
type SuperAdminDashboard struct {
	TotalBranches  int64                               `json:"total_branches"`
	TotalAdmins    int64                               `json:"total_admins"`
	TotalCustomers int64                               `json:"total_customers"`
	Bandwidth      domain.BandwidthTotals              `json:"bandwidth"`
	Subscriptions  map[domain.SubscriptionStatus]int64 `json:"subscriptions"`
}

// BranchDashboard is the summary shown to a branch admin
type BranchDashboard struct {
	BranchID       string                              `json:"branch_id"`
	TotalCustomers int64                               `json:"total_customers"`
	Subscriptions  map[domain.SubscriptionStatus]int64 `json:"subscriptions"`
	Tickets        *domain.TicketStats                 `json:"tickets"`
}

// SuperAdmin retrieves the platform summary, fetching each figure concurrently
func (s *DashboardService) SuperAdmin(ctx context.Context) (*SuperAdminDashboard, error) {
	return cached(ctx, s.cache, repository.DashboardKey(""), func(ctx context.Context) (*SuperAdminDashboard, error) {
		summary := &SuperAdminDashboard{}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.branchRepo.Count(gCtx)
			if err != nil {
				return fmt.Errorf("failed to count branches: %w", err)
			}
			summary.TotalBranches = n
			return nil
		})
		g.Go(func() error {
			n, err := s.userRepo.CountByRole(gCtx, domain.RoleAdmin)
			if err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			summary.TotalAdmins = n
			return nil
		})
		g.Go(func() error {
			n, err := s.customerRepo.Count(gCtx, domain.GlobalScope)
			if err != nil {
				return fmt.Errorf("failed to count customers: %w", err)
			}
			summary.TotalCustomers = n
			return nil
		})
		g.Go(func() error {
			totals, err := s.branchRepo.BandwidthTotals(gCtx)
			if err != nil {
				return fmt.Errorf("failed to sum bandwidth: %w", err)
			}
			summary.Bandwidth = totals
			return nil
		})
		g.Go(func() error {
			counts, err := s.subRepo.CountByStatus(gCtx, domain.GlobalScope)
			if err != nil {
				return fmt.Errorf("failed to count subscriptions: %w", err)
			}
			summary.Subscriptions = counts
			return nil
		})

		if err := g.Wait(); err != nil {
			return nil, domain.ErrSystemDatabase.Wrap(err)
		}
		return summary, nil
	})
}

// Branch retrieves the dashboard for the admin's own branch
func (s *DashboardService) Branch(ctx context.Context, scope domain.Scope) (*BranchDashboard, error) {
	return cached(ctx, s.cache, repository.DashboardKey(scopeKey(scope)), func(ctx context.Context) (*BranchDashboard, error) {
		summary := &BranchDashboard{BranchID: scope.BranchID}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.customerRepo.Count(gCtx, scope)
			if err != nil {
				return fmt.Errorf("failed to count customers: %w", err)
			}
			summary.TotalCustomers = n
			return nil
		})
		g.Go(func() error {
			counts, err := s.subRepo.CountByStatus(gCtx, scope)
			if err != nil {
				return fmt.Errorf("failed to count subscriptions: %w", err)
			}
			summary.Subscriptions = counts
			return nil
		})
		g.Go(func() error {
			stats, err := s.ticketRepo.Stats(gCtx, scope)
			if err != nil {
				return fmt.Errorf("failed to compute ticket stats: %w", err)
			}
			summary.Tickets = stats
			return nil
		})

		if err := g.Wait(); err != nil {
			return nil, domain.ErrSystemDatabase.Wrap(err)
		}
		return summary, nil
	})
}

// BandwidthUsage returns per-branch usage rows, or a single branch when branchID is set
func (s *DashboardService) BandwidthUsage(ctx context.Context, branchID string) ([]domain.BranchUsage, error) {
	rows, err := s.branchRepo.Usage(ctx, branchID)
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	if rows == nil {
		rows = []domain.BranchUsage{}
	}
	return rows, nil
}
