package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var samplePersonalInfo = domain.PersonalInfo{
	Name:     "Ayesha Khan",
	CNIC:     "3520212345671",
	Phone:    "03001234567",
	Email:    "ayesha@example.com",
	Address:  "House 12, Street 4",
	Landmark: "Near the mosque",
}

func TestCustomerService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("admin registers into own branch", func(t *testing.T) {
		customers := &mockCustomerRepo{}
		branches := &mockBranchRepo{}
		_, cache := newTestCache(t)
		svc := NewCustomerService(customers, branches, nil, cache, nil, bcrypt.MinCost)

		customers.On("Create", ctx, mock.MatchedBy(func(c *domain.Customer) bool {
			return c.BranchID == "branch-1" && c.PasswordHash != "secret1"
		})).Return(nil)
		branches.On("IncrementCustomerCount", ctx, "branch-1", int64(1)).Return(nil)

		c, err := svc.Create(ctx, branchAdmin, CreateCustomerRequest{PersonalInfo: samplePersonalInfo, Password: "secret1", BranchID: "branch-9"})
		require.NoError(t, err)
		assert.Equal(t, "branch-1", c.BranchID)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte("secret1")))
		branches.AssertExpectations(t)
	})

	t.Run("duplicate identity", func(t *testing.T) {
		customers := &mockCustomerRepo{}
		branches := &mockBranchRepo{}
		svc := NewCustomerService(customers, branches, nil, nil, nil, bcrypt.MinCost)
		customers.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicate)

		_, err := svc.Create(ctx, branchAdmin, CreateCustomerRequest{PersonalInfo: samplePersonalInfo, Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrCustomerExists)
		branches.AssertNotCalled(t, "IncrementCustomerCount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("superadmin must name a branch", func(t *testing.T) {
		svc := NewCustomerService(&mockCustomerRepo{}, &mockBranchRepo{}, nil, nil, nil, bcrypt.MinCost)
		_, err := svc.Create(ctx, domain.GlobalScope, CreateCustomerRequest{PersonalInfo: samplePersonalInfo, Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	})
}

func TestCustomerService_UploadDocuments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	clock := domain.FixedClock{FixedTime: now}

	t.Run("stores files and attaches them", func(t *testing.T) {
		customers := &mockCustomerRepo{}
		files := &mockFileRepo{}
		svc := NewCustomerService(customers, &mockBranchRepo{}, files, nil, clock, bcrypt.MinCost)

		customers.On("GetByID", ctx, branchAdmin, "c1").Return(&domain.Customer{ID: "c1", BranchID: "branch-1"}, nil)
		files.On("Upload", mock.Anything, mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "customers/c1/") && strings.HasSuffix(key, ".pdf")
		}), "application/pdf").Return("http://s3/bucket/doc.pdf", nil).Twice()
		customers.On("AddDocuments", ctx, branchAdmin, "c1", mock.MatchedBy(func(docs []domain.Document) bool {
			return len(docs) == 2 && docs[0].OriginalName == "cnic-front.PDF" && docs[1].Size == 3
		})).Return(nil)

		docs, err := svc.UploadDocuments(ctx, branchAdmin, "c1", []UploadedFile{
			{Name: "cnic-front.PDF", ContentType: "application/pdf", Data: []byte("ab")},
			{Name: "cnic-back.pdf", ContentType: "application/pdf", Data: []byte("abc")},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, now, docs[0].UploadedAt)
		assert.Equal(t, "http://s3/bucket/doc.pdf", docs[1].URL)
		files.AssertExpectations(t)
	})

	t.Run("limits", func(t *testing.T) {
		svc := NewCustomerService(&mockCustomerRepo{}, &mockBranchRepo{}, &mockFileRepo{}, nil, clock, bcrypt.MinCost)

		_, err := svc.UploadDocuments(ctx, branchAdmin, "c1", nil)
		assert.ErrorIs(t, err, domain.ErrNoDocuments)

		six := make([]UploadedFile, 6)
		_, err = svc.UploadDocuments(ctx, branchAdmin, "c1", six)
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	})

	t.Run("storage disabled", func(t *testing.T) {
		svc := NewCustomerService(&mockCustomerRepo{}, &mockBranchRepo{}, nil, nil, clock, bcrypt.MinCost)
		_, err := svc.UploadDocuments(ctx, branchAdmin, "c1", []UploadedFile{{Name: "a.png"}})
		assert.ErrorIs(t, err, domain.ErrSystemConfig)
	})

	t.Run("upload failure attaches nothing", func(t *testing.T) {
		customers := &mockCustomerRepo{}
		files := &mockFileRepo{}
		svc := NewCustomerService(customers, &mockBranchRepo{}, files, nil, clock, bcrypt.MinCost)
		customers.On("GetByID", ctx, branchAdmin, "c1").Return(&domain.Customer{ID: "c1"}, nil)
		files.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errBoom)

		_, err := svc.UploadDocuments(ctx, branchAdmin, "c1", []UploadedFile{{Name: "a.png", ContentType: "image/png"}})
		assert.ErrorIs(t, err, domain.ErrSystemFileSystem)
		customers.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
