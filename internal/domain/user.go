package domain

import (
	"context"
	"time"
)

// User is a staff account: a platform superadmin or a branch admin
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         string     `bson:"role" json:"role"`
	BranchID     string     `bson:"branch_id,omitempty" json:"branch_id,omitempty"`
	Permissions  []string   `bson:"permissions" json:"permissions"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// Scope derives the data visibility of this user
func (u *User) Scope() Scope {
	return Scope{Role: u.Role, BranchID: u.BranchID}
}

// UserRepository defines operations for managing users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetBranch(ctx context.Context, userID, branchID string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	CountByRole(ctx context.Context, role string) (int64, error)
}
