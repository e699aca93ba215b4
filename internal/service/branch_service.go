package service

import (
	"context"
	"errors"
	"strings"

	"github.com/netlinkisp/ispadmin/internal/domain"
)

// BranchService handles branch management for superadmins
type BranchService struct {
	branchRepo domain.BranchRepository
	cache      AnalyticsCache
}

// NewBranchService creates a new branch service
func NewBranchService(branchRepo domain.BranchRepository, cache AnalyticsCache) *BranchService {
	return &BranchService{
		branchRepo: branchRepo,
		cache:      cache,
	}
}

// CreateBranchRequest contains the params for a new branch
type CreateBranchRequest struct {
	Name      string              `json:"name" validate:"required,max=100"`
	Location  domain.Location     `json:"location" validate:"required"`
	Bandwidth int64               `json:"bandwidth_allocated" validate:"gte=0"`
	Status    domain.BranchStatus `json:"status" validate:"omitempty,oneof=active inactive maintenance"`
}

// UpdateBranchRequest contains optional branch changes
type UpdateBranchRequest struct {
	Name      *string              `json:"name" validate:"omitempty,max=100"`
	Location  *domain.Location     `json:"location"`
	Allocated *int64               `json:"bandwidth_allocated" validate:"omitempty,gte=0"`
	Used      *int64               `json:"bandwidth_used" validate:"omitempty,gte=0"`
	Status    *domain.BranchStatus `json:"status" validate:"omitempty,oneof=active inactive maintenance"`
}

// List returns branches filtered by city with pagination
func (s *BranchService) List(ctx context.Context, filter domain.BranchFilter) ([]*domain.Branch, int64, error) {
	branches, total, err := s.branchRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, domain.ErrSystemDatabase.Wrap(err)
	}
	if branches == nil {
		branches = []*domain.Branch{}
	}
	return branches, total, nil
}

// Get returns one branch
func (s *BranchService) Get(ctx context.Context, id string) (*domain.Branch, error) {
	branch, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBranchNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	return branch, nil
}

// Create adds a branch. Branch names are unique.
func (s *BranchService) Create(ctx context.Context, req CreateBranchRequest) (*domain.Branch, error) {
	name := strings.TrimSpace(req.Name)
	if _, err := s.branchRepo.GetByName(ctx, name); err == nil {
		return nil, domain.ErrBranchCreationFailed.WithDetails("a branch with this name already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	branch := &domain.Branch{
		Name:      name,
		Location:  req.Location,
		Bandwidth: domain.Bandwidth{Allocated: req.Bandwidth},
		Status:    req.Status,
	}
	if err := s.branchRepo.Create(ctx, branch); err != nil {
		return nil, domain.ErrBranchCreationFailed.Wrap(err)
	}

	invalidateAnalytics(ctx, s.cache)
	return branch, nil
}

// Update applies the non-nil fields of req to a branch
func (s *BranchService) Update(ctx context.Context, id string, req UpdateBranchRequest) (*domain.Branch, error) {
	branch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		branch.Name = strings.TrimSpace(*req.Name)
	}
	if req.Location != nil {
		branch.Location = *req.Location
	}
	if req.Allocated != nil {
		branch.Bandwidth.Allocated = *req.Allocated
	}
	if req.Used != nil {
		branch.Bandwidth.Used = *req.Used
	}
	if req.Status != nil {
		branch.Status = *req.Status
	}
	if branch.Bandwidth.Used > branch.Bandwidth.Allocated {
		return nil, domain.ErrBadRequest.WithDetails("bandwidth used exceeds allocation")
	}

	if err := s.branchRepo.Update(ctx, branch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBranchNotFound
		}
		return nil, domain.ErrBranchUpdateFailed.Wrap(err)
	}

	invalidateAnalytics(ctx, s.cache)
	return branch, nil
}

// Delete removes a branch
func (s *BranchService) Delete(ctx context.Context, id string) error {
	if err := s.branchRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrBranchNotFound
		}
		return domain.ErrBranchDeletionFailed.Wrap(err)
	}
	invalidateAnalytics(ctx, s.cache)
	return nil
}
