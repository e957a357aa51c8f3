package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/api/dto"
	"github.com/spec-kit/expiry-notifier/internal/audit"
)

const defaultHistoryLimit = 200

// HistoryHandler exposes the notification audit ledger.
type HistoryHandler struct {
	ledger *audit.Ledger
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(ledger *audit.Ledger) *HistoryHandler {
	return &HistoryHandler{ledger: ledger}
}

// List GET /api/history.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), defaultHistoryLimit)
	entries, err := h.ledger.List(c.Context(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AuditEntryResponse{
			DateKey:   entry.DateKey,
			Recipient: entry.Recipient,
			ProfileID: entry.ProfileID,
			Outcome:   entry.Outcome,
			At:        entry.At,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseLimit(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
