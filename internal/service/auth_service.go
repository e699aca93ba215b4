package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles staff login and account provisioning
type AuthService struct {
	userRepo   domain.UserRepository
	branchRepo domain.BranchRepository
	tokens     *TokenService
	clock      domain.Clock
	bcryptCost int
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo domain.UserRepository,
	branchRepo domain.BranchRepository,
	tokens *TokenService,
	clock domain.Clock,
	bcryptCost int,
) *AuthService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		branchRepo: branchRepo,
		tokens:     tokens,
		clock:      clock,
		bcryptCost: bcryptCost,
	}
}

// LoginRequest contains the login params
type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResponse contains the user and a fresh token pair
type LoginResponse struct {
	User   *domain.User
	Tokens *TokenPair
}

// Login verifies email and password and issues tokens.
// Unknown email and wrong password are both 401; an inactive account is 403.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAuthInvalidCredentials
	}
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	if !user.IsActive {
		return nil, domain.ErrAuthUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrAuthIncorrectPassword
	}

	now := s.clock.Now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("failed to stamp last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	tokens, err := s.tokens.GenerateTokenPair(ctx, user, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, domain.ErrSystemUnknown.Wrap(err)
	}

	return &LoginResponse{User: user, Tokens: tokens}, nil
}

// CreateBranchAdminRequest contains the params for provisioning a branch admin
type CreateBranchAdminRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	BranchID string `json:"branch_id"`
}

// CreateBranchAdmin creates an admin user and, when BranchID is set,
// assigns the admin to that branch.
func (s *AuthService) CreateBranchAdmin(ctx context.Context, req CreateBranchAdminRequest) (*domain.User, error) {
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, domain.ErrAuthEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	if req.BranchID != "" {
		if _, err := s.branchRepo.GetByID(ctx, req.BranchID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrBranchNotFound
			}
			return nil, domain.ErrSystemDatabase.Wrap(err)
		}
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, domain.ErrUserCreationFailed.Wrap(err)
	}

	admin := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		BranchID:     req.BranchID,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrAuthEmailExists
		}
		return nil, domain.ErrUserCreationFailed.Wrap(err)
	}

	if req.BranchID != "" {
		if err := s.branchRepo.AssignAdmin(ctx, req.BranchID, admin.ID); err != nil {
			return nil, domain.ErrBranchUpdateFailed.Wrap(err)
		}
	}

	return admin, nil
}

// EnsureSuperAdmin creates the platform superadmin if no user has that email.
// It reports whether a user was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("failed to look up superadmin: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = s.userRepo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		Permissions:  []string{"all"},
		IsActive:     true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create superadmin: %w", err)
	}
	return true, nil
}

// HashPassword hashes a plain-text password with the configured bcrypt cost
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
