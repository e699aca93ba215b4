package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/service"
)

const refreshCookieName = "isp-refresh-token"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService   *service.AuthService
	tokenService  *service.TokenService
	refreshExpiry time.Duration
	secureCookie  bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, tokenService *service.TokenService, refreshExpiry time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		tokenService:  tokenService,
		refreshExpiry: refreshExpiry,
		secureCookie:  secureCookie,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.UserContext(), service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IPAddress: c.IP(),
	})
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, resp.Tokens.RefreshToken, time.Now().Add(h.refreshExpiry))

	return respond(c, fiber.StatusOK, fiber.Map{
		"user":          resp.User,
		"access_token":  resp.Tokens.AccessToken,
		"refresh_token": resp.Tokens.RefreshToken,
		"expires_in":    resp.Tokens.ExpiresIn,
	})
}

// RefreshToken handles POST /v1/auth/refresh.
// The token is read from the body first and the httpOnly cookie second.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := h.refreshTokenFrom(c)
	if refreshToken == "" {
		return domain.ErrAuthTokenExpired.WithDetails("no refresh token provided")
	}

	pair, err := h.tokenService.RefreshAccessToken(c.UserContext(), refreshToken, c.Get(fiber.HeaderUserAgent), c.IP())
	if err != nil {
		h.setRefreshCookie(c, "", time.Now().Add(-time.Hour))
		return err
	}

	h.setRefreshCookie(c, pair.RefreshToken, time.Now().Add(h.refreshExpiry))

	return respond(c, fiber.StatusOK, pair)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := h.refreshTokenFrom(c); refreshToken != "" {
		if err := h.tokenService.RevokeRefreshToken(c.UserContext(), refreshToken); err != nil {
			return domain.ErrSystemDatabase.Wrap(err)
		}
	}

	h.setRefreshCookie(c, "", time.Now().Add(-time.Hour))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) refreshTokenFrom(c *fiber.Ctx) string {
	var req refreshRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	return c.Cookies(refreshCookieName)
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
		Path:     "/v1/auth",
	})
}
