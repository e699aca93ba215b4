package repository

import (
	"context"
	"testing"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoCustomerRepository_BranchScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMongoCustomerRepository(db)
	ctx := context.Background()

	ali := &domain.Customer{
		BranchID: "branch-a",
		PersonalInfo: domain.PersonalInfo{
			Name: "Ali Raza", CNIC: "3520212345671", Phone: "03001234567",
			Email: "Ali@Example.com", Address: "Street 1", Landmark: "Mosque",
		},
	}
	sara := &domain.Customer{
		BranchID: "branch-b",
		PersonalInfo: domain.PersonalInfo{
			Name: "Sara Khan", CNIC: "3520212345672", Phone: "03001234568",
			Email: "sara@example.com", Address: "Street 2", Landmark: "Park",
		},
	}
	require.NoError(t, repo.Create(ctx, ali))
	require.NoError(t, repo.Create(ctx, sara))
	assert.Equal(t, "ali@example.com", ali.PersonalInfo.Email)

	dup := *sara
	dup.ID = ""
	assert.ErrorIs(t, repo.Create(ctx, &dup), domain.ErrDuplicate)

	adminA := domain.Scope{Role: domain.RoleAdmin, BranchID: "branch-a"}

	list, total, err := repo.List(ctx, adminA, domain.CustomerFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, ali.ID, list[0].ID)

	_, err = repo.GetByID(ctx, adminA, sara.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, total, err = repo.List(ctx, domain.GlobalScope, domain.CustomerFilter{Search: "khan"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	err = repo.AddDocuments(ctx, adminA, sara.ID, []domain.Document{{Filename: "x.pdf"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.AddDocuments(ctx, adminA, ali.ID, []domain.Document{{Filename: "cnic.jpg"}}))
	got, err := repo.GetByID(ctx, adminA, ali.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)

	n, err := repo.Count(ctx, domain.GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
