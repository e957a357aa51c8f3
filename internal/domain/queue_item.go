package domain

import "time"

// QueueItemStatus lifecycle of a queued delivery.
type QueueItemStatus string

const (
	QueueItemPending QueueItemStatus = "pending"
	QueueItemSending QueueItemStatus = "sending"
	QueueItemFailed  QueueItemStatus = "failed"
)

// QueueItem is a scheduled notification waiting for delivery by the queue
// worker. Items are removed on success and parked as failed after the retry
// budget is spent.
type QueueItem struct {
	ID           string          `json:"id"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	Recipient    string          `json:"recipient"`
	CC           []string        `json:"cc,omitempty"`
	Subject      string          `json:"subject"`
	Body         string          `json:"body"`
	ProfileID    string          `json:"profile_id"`
	ProfileName  string          `json:"profile_name"`
	Status       QueueItemStatus `json:"status"`
	RetryCount   int             `json:"retry_count"`
	ReadReceipt  bool            `json:"read_receipt"`
	CreatedAt    time.Time       `json:"created_at"`
	LastError    string          `json:"last_error,omitempty"`
}
