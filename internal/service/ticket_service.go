package service

import (
	"context"
	"errors"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/repository"
)

// ticketNumberAttempts bounds retries when a generated ticket number collides
const ticketNumberAttempts = 3

// TicketService handles support tickets raised by branches
type TicketService struct {
	ticketRepo domain.TicketRepository
	cache      AnalyticsCache
	clock      domain.Clock
}

// NewTicketService creates a new ticket service
func NewTicketService(ticketRepo domain.TicketRepository, cache AnalyticsCache, clock domain.Clock) *TicketService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &TicketService{
		ticketRepo: ticketRepo,
		cache:      cache,
		clock:      clock,
	}
}

// CreateTicketRequest contains the params for opening a ticket
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category    string `json:"category" validate:"required,oneof=technical billing customer_support infrastructure other"`
	CustomerID  string `json:"customer_id"`
}

// UpdateTicketStatusRequest contains a status change
type UpdateTicketStatusRequest struct {
	Status     domain.TicketStatus `json:"status" validate:"required,oneof=open in_progress pending resolved closed"`
	Comment    string              `json:"comment" validate:"max=1000"`
	AssignedTo string              `json:"assigned_to"`
}

// Create opens a ticket for the caller's branch
func (s *TicketService) Create(ctx context.Context, scope domain.Scope, createdBy string, req CreateTicketRequest) (*domain.Ticket, error) {
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      priority,
		Category:      req.Category,
		CreatedBy:     createdBy,
		BranchID:      scope.BranchID,
		CustomerID:    req.CustomerID,
		StatusHistory: []domain.StatusChange{},
		CreatedAt:     now,
	}
	ticket.ApplyStatus(domain.TicketOpen, createdBy, "Ticket created", now)

	var err error
	for range ticketNumberAttempts {
		ticket.TicketNumber = domain.NewTicketNumber(scope.BranchID, s.clock.Now())
		if err = s.ticketRepo.Create(ctx, ticket); !errors.Is(err, domain.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	invalidateAnalytics(ctx, s.cache)
	return ticket, nil
}

// List returns tickets visible to scope
func (s *TicketService) List(ctx context.Context, scope domain.Scope, filter domain.TicketFilter) ([]*domain.Ticket, int64, error) {
	tickets, total, err := s.ticketRepo.List(ctx, scope, filter)
	if err != nil {
		return nil, 0, domain.ErrSystemDatabase.Wrap(err)
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	return tickets, total, nil
}

// Get returns one ticket visible to scope
func (s *TicketService) Get(ctx context.Context, scope domain.Scope, id string) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}
	return ticket, nil
}

// UpdateStatus appends a status change to a ticket visible to scope
func (s *TicketService) UpdateStatus(ctx context.Context, scope domain.Scope, id, updatedBy string, req UpdateTicketStatusRequest) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ticket.ApplyStatus(req.Status, updatedBy, req.Comment, now)
	if req.AssignedTo != "" {
		ticket.AssignedTo = req.AssignedTo
	}
	change := ticket.StatusHistory[len(ticket.StatusHistory)-1]

	var resolvedAt, closedAt *time.Time
	switch req.Status {
	case domain.TicketResolved:
		resolvedAt = ticket.ResolvedAt
	case domain.TicketClosed:
		closedAt = ticket.ClosedAt
	}
	if err := s.ticketRepo.AppendStatus(ctx, id, change, req.AssignedTo, resolvedAt, closedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, domain.ErrSystemDatabase.Wrap(err)
	}

	invalidateAnalytics(ctx, s.cache)
	return ticket, nil
}

// Stats returns ticket counts visible to scope
func (s *TicketService) Stats(ctx context.Context, scope domain.Scope) (*domain.TicketStats, error) {
	return cached(ctx, s.cache, repository.TicketStatsKey(scopeKey(scope)), func(ctx context.Context) (*domain.TicketStats, error) {
		stats, err := s.ticketRepo.Stats(ctx, scope)
		if err != nil {
			return nil, domain.ErrSystemDatabase.Wrap(err)
		}
		return stats, nil
	})
}
