package dto

import (
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// QueueItemResponse describes one scheduled delivery.
type QueueItemResponse struct {
	ID           string                 `json:"id"`
	ScheduledFor time.Time              `json:"scheduled_for"`
	Recipient    string                 `json:"recipient"`
	CC           []string               `json:"cc,omitempty"`
	Subject      string                 `json:"subject"`
	ProfileID    string                 `json:"profile_id"`
	ProfileName  string                 `json:"profile_name"`
	Status       domain.QueueItemStatus `json:"status"`
	RetryCount   int                    `json:"retry_count"`
	CreatedAt    time.Time              `json:"created_at"`
	LastError    string                 `json:"last_error,omitempty"`
}

// QueueListResponse queue listing with depth counters.
type QueueListResponse struct {
	Items   []QueueItemResponse `json:"items"`
	Pending int                 `json:"pending"`
	Failed  int                 `json:"failed"`
}
