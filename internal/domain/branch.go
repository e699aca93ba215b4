package domain

import (
	"context"
	"time"
)

// BranchStatus is the operational state of a branch
type BranchStatus string

const (
	BranchActive      BranchStatus = "active"
	BranchInactive    BranchStatus = "inactive"
	BranchMaintenance BranchStatus = "maintenance"
)

// Location of a branch. Coordinates are [longitude, latitude].
type Location struct {
	Address     string    `bson:"address" json:"address" validate:"required"`
	City        string    `bson:"city" json:"city" validate:"required"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"required,len=2"`
}

// Bandwidth allocation of a branch in Mbps
type Bandwidth struct {
	Allocated int64 `bson:"allocated" json:"allocated"`
	Used      int64 `bson:"used" json:"used"`
	Remaining int64 `bson:"remaining" json:"remaining"`
}

// Recompute keeps Remaining in sync with Allocated and Used
func (b *Bandwidth) Recompute() {
	b.Remaining = b.Allocated - b.Used
}

// UsagePercent returns used/allocated as a percentage rounded to two decimals
func (b Bandwidth) UsagePercent() float64 {
	if b.Allocated <= 0 {
		return 0
	}
	pct := float64(b.Used) / float64(b.Allocated) * 100
	return float64(int64(pct*100+0.5)) / 100
}

// Branch is a physical ISP office serving a set of customers
type Branch struct {
	ID            string       `bson:"_id,omitempty" json:"id"`
	Name          string       `bson:"name" json:"name"`
	Location      Location     `bson:"location" json:"location"`
	Bandwidth     Bandwidth    `bson:"bandwidth" json:"bandwidth"`
	AdminID       string       `bson:"admin_id,omitempty" json:"admin_id,omitempty"`
	CustomerCount int64        `bson:"customer_count" json:"customer_count"`
	Status        BranchStatus `bson:"status" json:"status"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updated_at"`
}

// BranchFilter narrows branch listings
type BranchFilter struct {
	City  string
	Page  int64
	Limit int64
}

// BandwidthTotals sums bandwidth across branches
type BandwidthTotals struct {
	TotalAllocated int64 `json:"total_allocated"`
	TotalUsed      int64 `json:"total_used"`
	TotalRemaining int64 `json:"total_remaining"`
}

// BranchUsage is one row of the per-branch bandwidth report
type BranchUsage struct {
	BranchID      string    `json:"branch_id"`
	Name          string    `json:"name"`
	Bandwidth     Bandwidth `json:"bandwidth"`
	CustomerCount int64     `json:"customer_count"`
	UsagePercent  float64   `json:"usage_percent"`
}

// BranchRepository defines operations for managing branches
type BranchRepository interface {
	Create(ctx context.Context, branch *Branch) error
	GetByID(ctx context.Context, id string) (*Branch, error)
	GetByName(ctx context.Context, name string) (*Branch, error)
	List(ctx context.Context, filter BranchFilter) ([]*Branch, int64, error)
	Update(ctx context.Context, branch *Branch) error
	Delete(ctx context.Context, id string) error
	AssignAdmin(ctx context.Context, branchID, adminID string) error
	IncrementCustomerCount(ctx context.Context, branchID string, delta int64) error
	Count(ctx context.Context) (int64, error)
	BandwidthTotals(ctx context.Context) (BandwidthTotals, error)
	Usage(ctx context.Context, branchID string) ([]BranchUsage, error)
}
