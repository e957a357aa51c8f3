package dto

import (
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// AuditEntryResponse one notification audit record.
type AuditEntryResponse struct {
	DateKey   string              `json:"date_key"`
	Recipient string              `json:"recipient"`
	ProfileID string              `json:"profile_id"`
	Outcome   domain.AuditOutcome `json:"outcome"`
	At        time.Time           `json:"at"`
}
