package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/settings"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// SettingsHandler reads and updates the persisted application settings.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get GET /api/settings. Stored secrets come back masked.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	cfg := h.store.Load(c.Context())
	return c.JSON(fiber.Map{"data": cfg.Masked()})
}

// Update PUT /api/settings. Secrets carrying the masked sentinel keep their
// stored values.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var incoming settings.Settings
	if err := c.BodyParser(&incoming); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	saved, err := h.store.Update(c.Context(), incoming)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": saved.Masked()})
}
