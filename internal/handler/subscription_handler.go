package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/middleware"
	"github.com/netlinkisp/ispadmin/internal/service"
)

// ReconcileRunner runs one lifecycle reconciliation
type ReconcileRunner interface {
	Reconcile(ctx context.Context, now time.Time) (*domain.ReconciliationReport, error)
}

// SubscriptionHandler serves subscription endpoints and the manual reconciliation trigger
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	reconciler    ReconcileRunner
	clock         domain.Clock
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subscriptions *service.SubscriptionService, reconciler ReconcileRunner, clock domain.Clock) *SubscriptionHandler {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		reconciler:    reconciler,
		clock:         clock,
	}
}

// Packages handles GET /v1/admin/packages
func (h *SubscriptionHandler) Packages(c *fiber.Ctx) error {
	pkgs, err := h.subscriptions.Packages(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, pkgs)
}

// Create handles POST /v1/admin/subscriptions
func (h *SubscriptionHandler) Create(c *fiber.Ctx) error {
	var req service.CreateSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := h.subscriptions.Create(c.UserContext(), middleware.ScopeFrom(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, sub)
}

// Get handles GET /v1/admin/subscriptions/:id
func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	sub, err := h.subscriptions.Get(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, sub)
}

// ListByCustomer handles GET /v1/admin/customers/:id/subscriptions
func (h *SubscriptionHandler) ListByCustomer(c *fiber.Ctx) error {
	subs, err := h.subscriptions.ListByCustomer(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, subs)
}

// Suspend handles POST /v1/admin/subscriptions/:id/suspend
func (h *SubscriptionHandler) Suspend(c *fiber.Ctx) error {
	sub, err := h.subscriptions.Suspend(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, sub)
}

// Activate handles POST /v1/admin/subscriptions/:id/activate
func (h *SubscriptionHandler) Activate(c *fiber.Ctx) error {
	sub, err := h.subscriptions.Activate(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, sub)
}

// Renew handles POST /v1/admin/subscriptions/:id/renew
func (h *SubscriptionHandler) Renew(c *fiber.Ctx) error {
	sub, err := h.subscriptions.Renew(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"), middleware.UserIDFrom(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, sub)
}

// Stats handles GET /v1/{admin,superadmin}/subscriptions/analytics
func (h *SubscriptionHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.subscriptions.Stats(c.UserContext(), middleware.ScopeFrom(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, stats)
}

// Reconcile handles POST /v1/superadmin/reconciliations.
// A run already in progress anywhere is reported as 409.
func (h *SubscriptionHandler) Reconcile(c *fiber.Ctx) error {
	if h.reconciler == nil {
		return domain.ErrSystemConfig.WithDetails("reconciler is not configured")
	}

	report, err := h.reconciler.Reconcile(c.UserContext(), h.clock.Now())
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return domain.ErrReconcileBusy
	case err != nil && report != nil:
		return c.Status(domain.ErrReconcileIncomplete.Status).JSON(fiber.Map{
			"success": false,
			"error": ErrorBody{
				Code:    domain.ErrReconcileIncomplete.Code,
				Message: domain.ErrReconcileIncomplete.Message,
				Details: err.Error(),
			},
			"data": report,
		})
	case err != nil:
		return domain.ErrReconcileIncomplete.Wrap(err)
	}
	return respond(c, fiber.StatusOK, report)
}

// LastReconciliation handles GET /v1/superadmin/reconciliations/last
func (h *SubscriptionHandler) LastReconciliation(c *fiber.Ctx) error {
	report, err := h.subscriptions.LastReconciliation(c.UserContext())
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no reconciliation has run yet")
	}
	if err != nil {
		return domain.ErrSystemDatabase.Wrap(err)
	}
	return respond(c, fiber.StatusOK, report)
}
