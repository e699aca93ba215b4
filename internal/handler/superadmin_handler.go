package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/service"
)

// SuperAdminHandler serves the platform-wide endpoints under /v1/superadmin
type SuperAdminHandler struct {
	branches  *service.BranchService
	dashboard *service.DashboardService
	auth      *service.AuthService
}

// NewSuperAdminHandler creates a new superadmin handler
func NewSuperAdminHandler(branches *service.BranchService, dashboard *service.DashboardService, auth *service.AuthService) *SuperAdminHandler {
	return &SuperAdminHandler{
		branches:  branches,
		dashboard: dashboard,
		auth:      auth,
	}
}

// Dashboard handles GET /v1/superadmin/dashboard
func (h *SuperAdminHandler) Dashboard(c *fiber.Ctx) error {
	summary, err := h.dashboard.SuperAdmin(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, summary)
}

// Analytics handles GET /v1/superadmin/analytics?branch_id=
func (h *SuperAdminHandler) Analytics(c *fiber.Ctx) error {
	rows, err := h.dashboard.BandwidthUsage(c.UserContext(), c.Query("branch_id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, rows)
}

// ListBranches handles GET /v1/superadmin/branches?city=&page=&limit=
func (h *SuperAdminHandler) ListBranches(c *fiber.Ctx) error {
	page, limit := pagination(c)
	branches, total, err := h.branches.List(c.UserContext(), domain.BranchFilter{
		City:  c.Query("city"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return err
	}
	return respondList(c, branches, total, page, limit)
}

// GetBranch handles GET /v1/superadmin/branches/:id
func (h *SuperAdminHandler) GetBranch(c *fiber.Ctx) error {
	branch, err := h.branches.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, branch)
}

// CreateBranch handles POST /v1/superadmin/branches
func (h *SuperAdminHandler) CreateBranch(c *fiber.Ctx) error {
	var req service.CreateBranchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	branch, err := h.branches.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, branch)
}

// UpdateBranch handles PATCH /v1/superadmin/branches/:id
func (h *SuperAdminHandler) UpdateBranch(c *fiber.Ctx) error {
	var req service.UpdateBranchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	branch, err := h.branches.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, branch)
}

// DeleteBranch handles DELETE /v1/superadmin/branches/:id
func (h *SuperAdminHandler) DeleteBranch(c *fiber.Ctx) error {
	if err := h.branches.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateBranchAdmin handles POST /v1/superadmin/admins
func (h *SuperAdminHandler) CreateBranchAdmin(c *fiber.Ctx) error {
	var req service.CreateBranchAdminRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.CreateBranchAdmin(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, user)
}
