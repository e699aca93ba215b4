package service

import (
	"context"
	"testing"
	"time"

	"github.com/netlinkisp/ispadmin/internal/config"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testJWT = config.JWTConfig{
	Secret:             "test-secret-key-123",
	AccessTokenExpiry:  15 * time.Minute,
	RefreshTokenExpiry: 7 * 24 * time.Hour,
	BcryptCost:         bcrypt.MinCost,
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthFixture(t *testing.T, now time.Time) (*AuthService, *mockUserRepo, *mockBranchRepo, *mockRefreshTokenRepo) {
	t.Helper()
	users := &mockUserRepo{}
	branches := &mockBranchRepo{}
	tokens := &mockRefreshTokenRepo{}
	clock := domain.FixedClock{FixedTime: now}
	ts := NewTokenService(testJWT, tokens, users, clock)
	return NewAuthService(users, branches, ts, clock, bcrypt.MinCost), users, branches, tokens
}

func TestAuthService_Login(t *testing.T) {
	now := time.Now()
	ctx := context.Background()

	admin := &domain.User{
		ID:           "u1",
		Name:         "Branch Admin",
		Email:        "admin@isp.test",
		PasswordHash: hashed(t, "correct-horse"),
		Role:         domain.RoleAdmin,
		BranchID:     "b1",
		IsActive:     true,
	}

	t.Run("success issues tokens and stamps last login", func(t *testing.T) {
		svc, users, _, tokens := newAuthFixture(t, now)
		users.On("GetByEmail", ctx, "admin@isp.test").Return(admin, nil)
		users.On("TouchLastLogin", ctx, "u1", now).Return(nil)
		tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

		resp, err := svc.Login(ctx, LoginRequest{Email: "admin@isp.test", Password: "correct-horse"})
		require.NoError(t, err)
		require.NotNil(t, resp.User.LastLogin)
		assert.Equal(t, now, *resp.User.LastLogin)
		assert.NotEmpty(t, resp.Tokens.AccessToken)
		assert.NotEmpty(t, resp.Tokens.RefreshToken)
		assert.Equal(t, int64(900), resp.Tokens.ExpiresIn)

		claims, err := ParseAccessToken(resp.Tokens.AccessToken, testJWT.Secret)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, domain.RoleAdmin, claims.Role)
		assert.Equal(t, domain.Scope{Role: domain.RoleAdmin, BranchID: "b1"}, claims.Scope())
		users.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, users, _, _ := newAuthFixture(t, now)
		users.On("GetByEmail", ctx, "nobody@isp.test").Return(nil, domain.ErrNotFound)

		_, err := svc.Login(ctx, LoginRequest{Email: "nobody@isp.test", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrAuthInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		svc, users, _, _ := newAuthFixture(t, now)
		inactive := *admin
		inactive.IsActive = false
		users.On("GetByEmail", ctx, "admin@isp.test").Return(&inactive, nil)

		_, err := svc.Login(ctx, LoginRequest{Email: "admin@isp.test", Password: "correct-horse"})
		assert.ErrorIs(t, err, domain.ErrAuthUserInactive)
		users.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, users, _, _ := newAuthFixture(t, now)
		users.On("GetByEmail", ctx, "admin@isp.test").Return(admin, nil)

		_, err := svc.Login(ctx, LoginRequest{Email: "admin@isp.test", Password: "wrong"})
		assert.ErrorIs(t, err, domain.ErrAuthIncorrectPassword)
	})
}

func TestAuthService_CreateBranchAdmin(t *testing.T) {
	ctx := context.Background()
	req := CreateBranchAdminRequest{Name: " New Admin ", Email: "new@isp.test", Password: "longenough", BranchID: "b1"}

	t.Run("creates admin and assigns branch", func(t *testing.T) {
		svc, users, branches, _ := newAuthFixture(t, time.Now())
		users.On("GetByEmail", ctx, "new@isp.test").Return(nil, domain.ErrNotFound)
		branches.On("GetByID", ctx, "b1").Return(&domain.Branch{ID: "b1"}, nil)
		users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Role == domain.RoleAdmin && u.BranchID == "b1" && u.IsActive && u.Name == "New Admin"
		})).Return(nil)
		branches.On("AssignAdmin", ctx, "b1", "user-new").Return(nil)

		user, err := svc.CreateBranchAdmin(ctx, req)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
		branches.AssertExpectations(t)
	})

	t.Run("email taken", func(t *testing.T) {
		svc, users, _, _ := newAuthFixture(t, time.Now())
		users.On("GetByEmail", ctx, "new@isp.test").Return(&domain.User{ID: "x"}, nil)

		_, err := svc.CreateBranchAdmin(ctx, req)
		assert.ErrorIs(t, err, domain.ErrAuthEmailExists)
	})

	t.Run("unknown branch", func(t *testing.T) {
		svc, users, branches, _ := newAuthFixture(t, time.Now())
		users.On("GetByEmail", ctx, "new@isp.test").Return(nil, domain.ErrNotFound)
		branches.On("GetByID", ctx, "b1").Return(nil, domain.ErrNotFound)

		_, err := svc.CreateBranchAdmin(ctx, req)
		assert.ErrorIs(t, err, domain.ErrBranchNotFound)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_EnsureSuperAdmin(t *testing.T) {
	ctx := context.Background()

	svc, users, _, _ := newAuthFixture(t, time.Now())
	users.On("GetByEmail", ctx, "root@isp.test").Return(nil, domain.ErrNotFound).Once()
	users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool { return u.Role == domain.RoleSuperAdmin })).Return(nil).Once()

	created, err := svc.EnsureSuperAdmin(ctx, "Root", "root@isp.test", "password1")
	require.NoError(t, err)
	assert.True(t, created)

	users.On("GetByEmail", ctx, "root@isp.test").Return(&domain.User{ID: "root"}, nil).Once()
	created, err = svc.EnsureSuperAdmin(ctx, "Root", "root@isp.test", "password1")
	require.NoError(t, err)
	assert.False(t, created)
	users.AssertExpectations(t)
}

func TestTokenService_RefreshAccessToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := domain.FixedClock{FixedTime: now}
	user := &domain.User{ID: "u1", Role: domain.RoleSuperAdmin, IsActive: true}

	t.Run("rotates a valid token", func(t *testing.T) {
		users := &mockUserRepo{}
		tokens := &mockRefreshTokenRepo{}
		svc := NewTokenService(testJWT, tokens, users, clock)

		hash := hashToken("raw-token")
		tokens.On("FindByHash", ctx, hash).Return(&domain.RefreshToken{UserID: "u1", ExpiresAt: now.Add(time.Hour)}, nil)
		users.On("GetByID", ctx, "u1").Return(user, nil)
		tokens.On("RevokeByHash", ctx, hash).Return(nil)
		tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

		pair, err := svc.RefreshAccessToken(ctx, "raw-token", "ua", "127.0.0.1")
		require.NoError(t, err)
		assert.NotEqual(t, "raw-token", pair.RefreshToken)
		tokens.AssertExpectations(t)
	})

	t.Run("expired token", func(t *testing.T) {
		tokens := &mockRefreshTokenRepo{}
		svc := NewTokenService(testJWT, tokens, &mockUserRepo{}, clock)
		tokens.On("FindByHash", ctx, hashToken("old")).Return(&domain.RefreshToken{UserID: "u1", ExpiresAt: now.Add(-time.Second)}, nil)

		_, err := svc.RefreshAccessToken(ctx, "old", "", "")
		assert.ErrorIs(t, err, domain.ErrAuthTokenExpired)
		tokens.AssertNotCalled(t, "RevokeByHash", mock.Anything, mock.Anything)
	})

	t.Run("unknown token", func(t *testing.T) {
		tokens := &mockRefreshTokenRepo{}
		svc := NewTokenService(testJWT, tokens, &mockUserRepo{}, clock)
		tokens.On("FindByHash", ctx, hashToken("nope")).Return(nil, domain.ErrNotFound)

		_, err := svc.RefreshAccessToken(ctx, "nope", "", "")
		assert.ErrorIs(t, err, domain.ErrAuthTokenExpired)
	})
}

func TestParseAccessToken_Rejects(t *testing.T) {
	past := domain.FixedClock{FixedTime: time.Now().Add(-time.Hour)}
	svc := NewTokenService(testJWT, nil, nil, past)
	expired, err := svc.generateAccessToken(&domain.User{ID: "u1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(expired, testJWT.Secret)
	assert.ErrorIs(t, err, domain.ErrAuthTokenExpired)

	fresh, err := NewTokenService(testJWT, nil, nil, nil).generateAccessToken(&domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = ParseAccessToken(fresh, "another-secret")
	assert.ErrorIs(t, err, domain.ErrAuthUnauthorized)
}
