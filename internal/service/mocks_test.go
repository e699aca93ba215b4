package service

import (
	"context"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == "" {
		user.ID = "user-new"
	}
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) SetBranch(ctx context.Context, userID, branchID string) error {
	return m.Called(ctx, userID, branchID).Error(0)
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role string) (int64, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(int64), args.Error(1)
}

type mockRefreshTokenRepo struct{ mock.Mock }

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockRefreshTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, hash)
	if t, ok := args.Get(0).(*domain.RefreshToken); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefreshTokenRepo) RevokeByHash(ctx context.Context, hash string) error {
	return m.Called(ctx, hash).Error(0)
}

func (m *mockRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockRefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) error {
	return m.Called(ctx, before).Error(0)
}

type mockBranchRepo struct{ mock.Mock }

func (m *mockBranchRepo) Create(ctx context.Context, branch *domain.Branch) error {
	args := m.Called(ctx, branch)
	if args.Error(0) == nil && branch.ID == "" {
		branch.ID = "branch-new"
	}
	return args.Error(0)
}

func (m *mockBranchRepo) GetByID(ctx context.Context, id string) (*domain.Branch, error) {
	args := m.Called(ctx, id)
	if b, ok := args.Get(0).(*domain.Branch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBranchRepo) GetByName(ctx context.Context, name string) (*domain.Branch, error) {
	args := m.Called(ctx, name)
	if b, ok := args.Get(0).(*domain.Branch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBranchRepo) List(ctx context.Context, filter domain.BranchFilter) ([]*domain.Branch, int64, error) {
	args := m.Called(ctx, filter)
	branches, _ := args.Get(0).([]*domain.Branch)
	return branches, args.Get(1).(int64), args.Error(2)
}

func (m *mockBranchRepo) Update(ctx context.Context, branch *domain.Branch) error {
	return m.Called(ctx, branch).Error(0)
}

func (m *mockBranchRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBranchRepo) AssignAdmin(ctx context.Context, branchID, adminID string) error {
	return m.Called(ctx, branchID, adminID).Error(0)
}

func (m *mockBranchRepo) IncrementCustomerCount(ctx context.Context, branchID string, delta int64) error {
	return m.Called(ctx, branchID, delta).Error(0)
}

func (m *mockBranchRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBranchRepo) BandwidthTotals(ctx context.Context) (domain.BandwidthTotals, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.BandwidthTotals), args.Error(1)
}

func (m *mockBranchRepo) Usage(ctx context.Context, branchID string) ([]domain.BranchUsage, error) {
	args := m.Called(ctx, branchID)
	rows, _ := args.Get(0).([]domain.BranchUsage)
	return rows, args.Error(1)
}

type mockPackageRepo struct{ mock.Mock }

func (m *mockPackageRepo) Create(ctx context.Context, pkg *domain.Package) error {
	return m.Called(ctx, pkg).Error(0)
}

func (m *mockPackageRepo) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*domain.Package); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPackageRepo) GetByName(ctx context.Context, name string) (*domain.Package, error) {
	args := m.Called(ctx, name)
	if p, ok := args.Get(0).(*domain.Package); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPackageRepo) GetActivePackages(ctx context.Context) ([]*domain.Package, error) {
	args := m.Called(ctx)
	pkgs, _ := args.Get(0).([]*domain.Package)
	return pkgs, args.Error(1)
}

func (m *mockPackageRepo) Update(ctx context.Context, pkg *domain.Package) error {
	return m.Called(ctx, pkg).Error(0)
}

type mockCustomerRepo struct{ mock.Mock }

func (m *mockCustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	args := m.Called(ctx, customer)
	if args.Error(0) == nil && customer.ID == "" {
		customer.ID = "cust-new"
	}
	return args.Error(0)
}

func (m *mockCustomerRepo) GetByID(ctx context.Context, scope domain.Scope, id string) (*domain.Customer, error) {
	args := m.Called(ctx, scope, id)
	if c, ok := args.Get(0).(*domain.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	args := m.Called(ctx, email)
	if c, ok := args.Get(0).(*domain.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCustomerRepo) List(ctx context.Context, scope domain.Scope, filter domain.CustomerFilter) ([]*domain.Customer, int64, error) {
	args := m.Called(ctx, scope, filter)
	customers, _ := args.Get(0).([]*domain.Customer)
	return customers, args.Get(1).(int64), args.Error(2)
}

func (m *mockCustomerRepo) UpdatePersonalInfo(ctx context.Context, scope domain.Scope, id string, info domain.PersonalInfo) (*domain.Customer, error) {
	args := m.Called(ctx, scope, id, info)
	if c, ok := args.Get(0).(*domain.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCustomerRepo) AddDocuments(ctx context.Context, scope domain.Scope, id string, docs []domain.Document) error {
	return m.Called(ctx, scope, id, docs).Error(0)
}

func (m *mockCustomerRepo) Count(ctx context.Context, scope domain.Scope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

type mockTicketRepo struct{ mock.Mock }

func (m *mockTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	if args.Error(0) == nil && ticket.ID == "" {
		ticket.ID = "ticket-new"
	}
	return args.Error(0)
}

func (m *mockTicketRepo) GetByID(ctx context.Context, scope domain.Scope, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, scope, id)
	if t, ok := args.Get(0).(*domain.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTicketRepo) List(ctx context.Context, scope domain.Scope, filter domain.TicketFilter) ([]*domain.Ticket, int64, error) {
	args := m.Called(ctx, scope, filter)
	tickets, _ := args.Get(0).([]*domain.Ticket)
	return tickets, args.Get(1).(int64), args.Error(2)
}

func (m *mockTicketRepo) AppendStatus(ctx context.Context, id string, change domain.StatusChange, assignedTo string, resolvedAt, closedAt *time.Time) error {
	return m.Called(ctx, id, change, assignedTo, resolvedAt, closedAt).Error(0)
}

func (m *mockTicketRepo) Stats(ctx context.Context, scope domain.Scope) (*domain.TicketStats, error) {
	args := m.Called(ctx, scope)
	if s, ok := args.Get(0).(*domain.TicketStats); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFileRepo struct{ mock.Mock }

func (m *mockFileRepo) Upload(ctx context.Context, file []byte, key string, contentType string) (string, error) {
	args := m.Called(ctx, file, key, contentType)
	return args.String(0), args.Error(1)
}
