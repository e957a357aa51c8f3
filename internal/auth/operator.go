package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/config"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// Credentials hold the single operator account the API authenticates
// against.
type Credentials struct {
	Username     string
	PasswordHash string
}

// NewCredentials derives operator credentials from configuration. A stored
// hash wins; a plain password is hashed at startup. Running the API without
// either is refused.
func NewCredentials(cfg config.AuthConfig) (Credentials, error) {
	if cfg.AdminUsername == "" {
		return Credentials{}, errors.New("ADMIN_USERNAME not configured")
	}
	if cfg.AdminPasswordHash != "" {
		return Credentials{Username: cfg.AdminUsername, PasswordHash: cfg.AdminPasswordHash}, nil
	}
	if cfg.AdminPassword == "" {
		return Credentials{}, errors.New("operator password not configured: set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	hash, err := HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: cfg.AdminUsername, PasswordHash: hash}, nil
}

// Verify checks a login attempt against the stored credentials.
func (c Credentials) Verify(username, password string) error {
	if username != c.Username {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := ComparePassword(c.PasswordHash, password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return nil
}

// RequireOperator ensures an authenticated operator is on the request.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
