package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/service"
	"github.com/netlinkisp/ispadmin/internal/telemetry"
)

// Context keys for storing user info
const (
	UserIDKey   = "userID"
	RoleKey     = "role"
	BranchIDKey = "branch_id"
	ClaimsKey   = "claims"
)

// VerifyAccessToken validates the bearer JWT and stores its claims in locals.
// Failures are returned as AppErrors so the app error handler shapes the response.
func VerifyAccessToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return domain.ErrAuthInvalidCredentials.WithDetails("missing authorization token")
		}

		// format: "Bearer <token>"
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := service.ParseAccessToken(tokenString, jwtSecret)
		if err != nil {
			return err
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(RoleKey, claims.Role)
		c.Locals(BranchIDKey, claims.BranchID)
		c.Locals(ClaimsKey, claims)
		telemetry.AnnotateCaller(c, claims.UserID, claims.Role, claims.BranchID)

		return c.Next()
	}
}

// AuthorizeRole checks if the caller holds one of the allowed roles
func AuthorizeRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(RoleKey).(string)
		if role == "" {
			return domain.ErrAuthUnauthorized.WithDetails("no role found in token")
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}

		return domain.ErrAuthUnauthorized.WithDetails("requires role " + strings.Join(allowedRoles, " or "))
	}
}

// BranchScope rejects branch admins whose token carries no branch.
// Superadmins pass through with global visibility.
func BranchScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := ScopeFrom(c)
		if !scope.IsGlobal() && scope.BranchID == "" {
			return domain.ErrAuthUnauthorized.WithDetails("admin is not assigned to a branch")
		}
		return c.Next()
	}
}

// ScopeFrom returns the data visibility of the authenticated caller
func ScopeFrom(c *fiber.Ctx) domain.Scope {
	role, _ := c.Locals(RoleKey).(string)
	branchID, _ := c.Locals(BranchIDKey).(string)
	return domain.Scope{Role: role, BranchID: branchID}
}

// UserIDFrom returns the authenticated user id, or "" when unauthenticated
func UserIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
