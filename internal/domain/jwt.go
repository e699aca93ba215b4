package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the custom JWT claims carried by access tokens
type Claims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope derives the data visibility of the token holder
func (c *Claims) Scope() Scope {
	return Scope{Role: c.Role, BranchID: c.BranchID}
}
