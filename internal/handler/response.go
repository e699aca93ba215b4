package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrorBody is the error member of a failed response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler renders every error returned by a handler or middleware as
// {success:false, error:{code,message}}. Unknown errors become SYSTEM_UNKNOWN_ERROR
// and their cause is only logged.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var appErr *domain.AppError
		var fiberErr *fiber.Error

		body := ErrorBody{}
		status := fiber.StatusInternalServerError

		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			body.Code = appErr.Code
			body.Message = appErr.Message
			if status < fiber.StatusInternalServerError {
				body.Details = appErr.Details
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body.Code = "HTTP_" + strconv.Itoa(fiberErr.Code)
			body.Message = fiberErr.Message
		default:
			body.Code = domain.ErrSystemUnknown.Code
			body.Message = domain.ErrSystemUnknown.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   body,
		})
	}
}

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondList(c *fiber.Ctx, items interface{}, total, page, limit int64) error {
	pages := int64(0)
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

// pagination reads ?page and ?limit, falling back to defaults and capping limit
func pagination(c *fiber.Ctx) (page, limit int64) {
	page = int64(c.QueryInt("page", 1))
	if page < 1 {
		page = 1
	}
	limit = int64(c.QueryInt("limit", defaultPageSize))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
