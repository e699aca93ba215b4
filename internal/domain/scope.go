package domain

// Role constants
const (
	RoleSuperAdmin = "superadmin" // sees every branch
	RoleAdmin      = "admin"      // restricted to one branch
)

// Scope is the caller's data visibility derived from token claims.
// Repositories turn it into a query filter.
type Scope struct {
	Role     string
	BranchID string
}

// IsGlobal reports whether the scope sees every branch
func (s Scope) IsGlobal() bool {
	return s.Role == RoleSuperAdmin
}

// Allows reports whether a record owned by branchID is visible
func (s Scope) Allows(branchID string) bool {
	return s.IsGlobal() || (s.BranchID != "" && s.BranchID == branchID)
}

// GlobalScope is used by background jobs
var GlobalScope = Scope{Role: RoleSuperAdmin}
