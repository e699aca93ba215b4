package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/middleware"
	"github.com/netlinkisp/ispadmin/internal/service"
)

// TicketHandler serves support tickets for both roles; visibility follows the caller's scope
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Create handles POST /v1/admin/tickets
func (h *TicketHandler) Create(c *fiber.Ctx) error {
	var req service.CreateTicketRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ticket, err := h.tickets.Create(c.UserContext(), middleware.ScopeFrom(c), middleware.UserIDFrom(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, ticket)
}

// List handles GET /v1/{admin,superadmin}/tickets?status=&priority=&category=&page=&limit=
func (h *TicketHandler) List(c *fiber.Ctx) error {
	page, limit := pagination(c)
	tickets, total, err := h.tickets.List(c.UserContext(), middleware.ScopeFrom(c), domain.TicketFilter{
		Status:   domain.TicketStatus(c.Query("status")),
		Priority: c.Query("priority"),
		Category: c.Query("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return respondList(c, tickets, total, page, limit)
}

// Get handles GET /v1/{admin,superadmin}/tickets/:id
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, ticket)
}

// UpdateStatus handles PATCH /v1/superadmin/tickets/:id/status
func (h *TicketHandler) UpdateStatus(c *fiber.Ctx) error {
	var req service.UpdateTicketStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ticket, err := h.tickets.UpdateStatus(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"), middleware.UserIDFrom(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, ticket)
}

// Stats handles GET /v1/{admin,superadmin}/tickets/stats
func (h *TicketHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext(), middleware.ScopeFrom(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, stats)
}
