package domain

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketPending    TicketStatus = "pending"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known ticket status
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketPending, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// StatusChange is one append-only entry in a ticket's history
type StatusChange struct {
	Status    TicketStatus `bson:"status" json:"status"`
	UpdatedBy string       `bson:"updated_by" json:"updated_by"`
	Comment   string       `bson:"comment,omitempty" json:"comment,omitempty"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
}

// Ticket is a support request raised by a branch admin
type Ticket struct {
	ID            string         `bson:"_id,omitempty" json:"id"`
	TicketNumber  string         `bson:"ticket_number" json:"ticket_number"`
	Title         string         `bson:"title" json:"title" validate:"required,max=200"`
	Description   string         `bson:"description" json:"description" validate:"required,max=2000"`
	Priority      string         `bson:"priority" json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category      string         `bson:"category" json:"category" validate:"required,oneof=technical billing customer_support infrastructure other"`
	Status        TicketStatus   `bson:"status" json:"status"`
	CreatedBy     string         `bson:"created_by" json:"created_by"`
	BranchID      string         `bson:"branch_id" json:"branch_id"`
	AssignedTo    string         `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	CustomerID    string         `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	StatusHistory []StatusChange `bson:"status_history" json:"status_history"`
	ResolvedAt    *time.Time     `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ClosedAt      *time.Time     `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// NewTicketNumber builds TKT-<branch suffix>-<timestamp digits>-<random>.
func NewTicketNumber(branchID string, now time.Time) string {
	prefix := "GEN"
	if branchID != "" {
		prefix = branchID
		if len(prefix) > 4 {
			prefix = prefix[len(prefix)-4:]
		}
		prefix = strings.ToUpper(prefix)
	}

	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}

	return fmt.Sprintf("TKT-%s-%s-%03d", prefix, ms, rand.IntN(1000))
}

// ApplyStatus appends a history entry and stamps resolution times
func (t *Ticket) ApplyStatus(status TicketStatus, by, comment string, now time.Time) {
	t.Status = status
	t.UpdatedAt = now
	t.StatusHistory = append(t.StatusHistory, StatusChange{
		Status:    status,
		UpdatedBy: by,
		Comment:   comment,
		UpdatedAt: now,
	})
	switch status {
	case TicketResolved:
		t.ResolvedAt = &now
	case TicketClosed:
		t.ClosedAt = &now
	}
}

// TicketFilter narrows ticket listings
type TicketFilter struct {
	Status   TicketStatus
	Priority string
	Category string
	Page     int64
	Limit    int64
}

// TicketStats summarises tickets per status and priority
type TicketStats struct {
	Total      int64                  `json:"total"`
	ByStatus   map[TicketStatus]int64 `json:"by_status"`
	ByPriority map[string]int64       `json:"by_priority"`
}

// TicketRepository defines operations for managing tickets
type TicketRepository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByID(ctx context.Context, scope Scope, id string) (*Ticket, error)
	List(ctx context.Context, scope Scope, filter TicketFilter) ([]*Ticket, int64, error)
	// AppendStatus records a status change; an empty assignedTo leaves the assignee unchanged.
	AppendStatus(ctx context.Context, id string, change StatusChange, assignedTo string, resolvedAt, closedAt *time.Time) error
	Stats(ctx context.Context, scope Scope) (*TicketStats, error)
}
