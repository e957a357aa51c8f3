package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/api/dto"
	"github.com/spec-kit/expiry-notifier/internal/auth"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// AuthHandler exposes the operator login endpoint.
type AuthHandler struct {
	creds  auth.Credentials
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(creds auth.Credentials, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{creds: creds, tokens: tokens}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	if err := h.creds.Verify(req.Username, req.Password); err != nil {
		return err
	}
	token, expiresAt, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: expiresAt},
	})
}
