package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/middleware"
	"github.com/netlinkisp/ispadmin/internal/service"
)

// documentsField is the multipart field carrying customer documents
const documentsField = "documents"

// CustomerHandler serves branch customer endpoints
type CustomerHandler struct {
	customers *service.CustomerService
	dashboard *service.DashboardService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customers *service.CustomerService, dashboard *service.DashboardService) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		dashboard: dashboard,
	}
}

// Dashboard handles GET /v1/admin/dashboard
func (h *CustomerHandler) Dashboard(c *fiber.Ctx) error {
	summary, err := h.dashboard.Branch(c.UserContext(), middleware.ScopeFrom(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, summary)
}

// List handles GET /v1/admin/customers?search=&page=&limit=
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	page, limit := pagination(c)
	customers, total, err := h.customers.List(c.UserContext(), middleware.ScopeFrom(c), domain.CustomerFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return respondList(c, customers, total, page, limit)
}

// Get handles GET /v1/admin/customers/:id
func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	customer, err := h.customers.Get(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, customer)
}

// Create handles POST /v1/admin/customers
func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	var req service.CreateCustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	customer, err := h.customers.Create(c.UserContext(), middleware.ScopeFrom(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, customer)
}

// Update handles PUT /v1/admin/customers/:id
func (h *CustomerHandler) Update(c *fiber.Ctx) error {
	var info domain.PersonalInfo
	if err := bindAndValidate(c, &info); err != nil {
		return err
	}

	customer, err := h.customers.Update(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"), info)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, customer)
}

// UploadDocuments handles POST /v1/admin/customers/:id/documents (multipart, field "documents")
func (h *CustomerHandler) UploadDocuments(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.ErrNoDocuments
	}

	headers := form.File[documentsField]
	if len(headers) > domain.MaxDocumentsPerUpload {
		return domain.ErrBadRequest.WithDetails("at most 5 documents per upload")
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return domain.ErrSystemFileSystem.Wrap(err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return domain.ErrSystemFileSystem.Wrap(err)
		}
		files = append(files, service.UploadedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}

	docs, err := h.customers.UploadDocuments(c.UserContext(), middleware.ScopeFrom(c), c.Params("id"), files)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, docs)
}
