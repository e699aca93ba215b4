package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-123"

// statusOnly mirrors the app error handler closely enough for status assertions
func statusOnly(c *fiber.Ctx, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).SendString(appErr.Code)
	}
	return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
}

func signToken(t *testing.T, claims domain.Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(role, branchID string) domain.Claims {
	now := time.Now()
	return domain.Claims{
		UserID:   "u1",
		Role:     role,
		BranchID: branchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func newProtectedApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: statusOnly})
	app.Get("/admin", VerifyAccessToken(testSecret), AuthorizeRole(domain.RoleAdmin), BranchScope(), func(c *fiber.Ctx) error {
		scope := ScopeFrom(c)
		return c.SendString(UserIDFrom(c) + "@" + scope.BranchID)
	})
	app.Get("/super", VerifyAccessToken(testSecret), AuthorizeRole(domain.RoleSuperAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestVerifyAccessToken(t *testing.T) {
	app := newProtectedApp()

	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/admin", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/admin", "garbage").StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/admin", signToken(t, validClaims(domain.RoleAdmin, "b1"), "wrong-secret")).StatusCode)

	expired := validClaims(domain.RoleAdmin, "b1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/admin", signToken(t, expired, testSecret)).StatusCode)

	resp := get(t, app, "/admin", signToken(t, validClaims(domain.RoleAdmin, "b1"), testSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthorizeRoleAndBranchScope(t *testing.T) {
	app := newProtectedApp()

	admin := signToken(t, validClaims(domain.RoleAdmin, "b1"), testSecret)
	root := signToken(t, validClaims(domain.RoleSuperAdmin, ""), testSecret)
	unassigned := signToken(t, validClaims(domain.RoleAdmin, ""), testSecret)

	assert.Equal(t, http.StatusForbidden, get(t, app, "/super", admin).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, app, "/super", root).StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/admin", root).StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/admin", unassigned).StatusCode)
}

func TestIdempotencyMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls atomic.Int32
	app := fiber.New(fiber.Config{ErrorHandler: statusOnly})
	app.Use(IdempotencyMiddleware(client, time.Minute, logger.Discard()))
	app.Post("/subscriptions", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if n > 2 {
			return domain.ErrSubscriptionTransition
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Get("/subscriptions", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.SendString("list")
	})

	post := func(correlationID string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
		if correlationID != "" {
			req.Header.Set(CorrelationHeader, correlationID)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	first := post("abc")
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Empty(t, first.Header.Get("X-Idempotent-Replay"))

	replay := post("abc")
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.Equal(t, "true", replay.Header.Get("X-Idempotent-Replay"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, mr.Keys(), 1)
	assert.Greater(t, mr.TTL(mr.Keys()[0]), time.Duration(0))

	// no header, no replay
	assert.Equal(t, http.StatusCreated, post("").StatusCode)
	assert.Equal(t, int32(2), calls.Load())

	// failures are not stored
	assert.Equal(t, http.StatusConflict, post("def").StatusCode)
	assert.Equal(t, http.StatusConflict, post("def").StatusCode)
	assert.Equal(t, int32(4), calls.Load())

	// reads bypass the middleware
	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	req.Header.Set(CorrelationHeader, "abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIdempotencyMiddleware_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	app := fiber.New()
	app.Use(IdempotencyMiddleware(client, time.Minute, logger.Discard()))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CorrelationHeader, "x")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
