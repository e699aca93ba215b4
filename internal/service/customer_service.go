package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// CustomerService handles branch-scoped customer management
type CustomerService struct {
	customerRepo domain.CustomerRepository
	branchRepo   domain.BranchRepository
	files        domain.FileRepository
	cache        AnalyticsCache
	clock        domain.Clock
	bcryptCost   int
}

// NewCustomerService creates a new customer service. files may be nil when
// object storage is disabled; uploads then fail with a config error.
func NewCustomerService(
	customerRepo domain.CustomerRepository,
	branchRepo domain.BranchRepository,
	files domain.FileRepository,
	cache AnalyticsCache,
	clock domain.Clock,
	bcryptCost int,
) *CustomerService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &CustomerService{
		customerRepo: customerRepo,
		branchRepo:   branchRepo,
		files:        files,
		cache:        cache,
		clock:        clock,
		bcryptCost:   bcryptCost,
	}
}

// CreateCustomerRequest contains the params for registering a customer
type CreateCustomerRequest struct {
	PersonalInfo domain.PersonalInfo `json:"personal_info" validate:"required"`
	Password     string              `json:"password" validate:"required,min=6"`
	// BranchID is only honoured for superadmins; admins always register into their own branch.
	BranchID string `json:"branch_id"`
}

// UploadedFile is one file received by a documents upload
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Create registers a customer in the caller's branch
func (s *CustomerService) Create(ctx context.Context, scope domain.Scope, req CreateCustomerRequest) (*domain.Customer, error) {
	branchID := scope.BranchID
	if scope.IsGlobal() {
		branchID = req.BranchID
	}
	if branchID == "" {
		return nil, domain.ErrBadRequest.WithDetails("branch is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, domain.ErrSystemUnknown.Wrap(fmt.Errorf("failed to hash password: %w", err))
	}

	customer := &domain.Customer{
		BranchID:     branchID,
		PersonalInfo: req.PersonalInfo,
		PasswordHash: string(hash),
		Documents:    []domain.Document{},
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrCustomerExists
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	if err := s.branchRepo.IncrementCustomerCount(ctx, branchID, 1); err != nil {
		slog.Warn("failed to bump branch customer count", "branch_id", branchID, "error", err)
	}
	invalidateAnalytics(ctx, s.cache)
	return customer, nil
}

// List returns customers visible to scope, optionally filtered by name
func (s *CustomerService) List(ctx context.Context, scope domain.Scope, filter domain.CustomerFilter) ([]*domain.Customer, int64, error) {
	customers, total, err := s.customerRepo.List(ctx, scope, filter)
	if err != nil {
		return nil, 0, domain.ErrSystemDatabase.Wrap(err)
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	return customers, total, nil
}

// Get returns one customer visible to scope
func (s *CustomerService) Get(ctx context.Context, scope domain.Scope, id string) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	return customer, nil
}

// Update replaces the personal info of a customer visible to scope
func (s *CustomerService) Update(ctx context.Context, scope domain.Scope, id string, info domain.PersonalInfo) (*domain.Customer, error) {
	customer, err := s.customerRepo.UpdatePersonalInfo(ctx, scope, id, info)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrCustomerNotFound
		case errors.Is(err, domain.ErrDuplicate):
			return nil, domain.ErrCustomerExists
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	return customer, nil
}

// UploadDocuments stores up to MaxDocumentsPerUpload files in object storage
// and attaches them to the customer.
func (s *CustomerService) UploadDocuments(ctx context.Context, scope domain.Scope, id string, files []UploadedFile) ([]domain.Document, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoDocuments
	}
	if len(files) > domain.MaxDocumentsPerUpload {
		return nil, domain.ErrBadRequest.WithDetails(fmt.Sprintf("at most %d files per upload", domain.MaxDocumentsPerUpload))
	}
	if s.files == nil {
		return nil, domain.ErrSystemConfig.WithDetails("document storage is disabled")
	}

	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	docs := make([]domain.Document, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filename := ulid.Make().String() + strings.ToLower(filepath.Ext(f.Name))
			key := fmt.Sprintf("customers/%s/%s", id, filename)
			url, err := s.files.Upload(gCtx, f.Data, key, f.ContentType)
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", f.Name, err)
			}
			docs[i] = domain.Document{
				Filename:     filename,
				OriginalName: f.Name,
				URL:          url,
				MimeType:     f.ContentType,
				Size:         int64(len(f.Data)),
				UploadedAt:   now,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.ErrSystemFileSystem.Wrap(err)
	}

	if err := s.customerRepo.AddDocuments(ctx, scope, id, docs); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	return docs, nil
}
