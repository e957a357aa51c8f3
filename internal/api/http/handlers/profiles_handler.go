package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/api/dto"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/service"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// ProfilesHandler manages notification profile endpoints.
type ProfilesHandler struct {
	service *service.ProfileService
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(profileService *service.ProfileService) *ProfilesHandler {
	return &ProfilesHandler{service: profileService}
}

// List GET /api/profiles.
func (h *ProfilesHandler) List(c *fiber.Ctx) error {
	profiles, err := h.service.List(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.ProfileResponse, 0, len(profiles))
	for i := range profiles {
		items = append(items, profileResponse(&profiles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/profiles/:id.
func (h *ProfilesHandler) Get(c *fiber.Ctx) error {
	profile, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// Create POST /api/profiles.
func (h *ProfilesHandler) Create(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.service.Create(c.Context(), profileInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": profileResponse(profile)})
}

// Update PUT /api/profiles/:id.
func (h *ProfilesHandler) Update(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.service.Update(c.Context(), c.Params("id"), profileInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// Delete DELETE /api/profiles/:id.
func (h *ProfilesHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func profileInput(req dto.ProfileRequest) domain.NotificationProfile {
	return domain.NotificationProfile{
		Name:            req.Name,
		SubjectTemplate: req.SubjectTemplate,
		BodyTemplate:    req.BodyTemplate,
		CadenceDays:     req.CadenceDays,
		Recipients:      req.Recipients,
		AssignedGroups:  req.AssignedGroups,
		PreferredTime:   req.PreferredTime,
	}
}

func profileResponse(p *domain.NotificationProfile) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:              p.ID,
		Name:            p.Name,
		SubjectTemplate: p.SubjectTemplate,
		BodyTemplate:    p.BodyTemplate,
		CadenceDays:     p.CadenceDays,
		Recipients:      p.Recipients,
		AssignedGroups:  p.AssignedGroups,
		PreferredTime:   p.PreferredTime,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
