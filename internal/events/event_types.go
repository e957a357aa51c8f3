package events

import (
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventNotificationQueued  EventType = "notification_queued"
	EventNotificationSent    EventType = "notification_sent"
	EventNotificationFailed  EventType = "notification_failed"
	EventNotificationSkipped EventType = "notification_skipped"
	EventQueueItemParked     EventType = "queue_item_parked"
	EventQueueSampled        EventType = "queue_sampled"
	EventJobCompleted        EventType = "job_completed"
)

// Event represents a notification lifecycle event emitted by the job
// orchestrator and the queue worker.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ProfileID string      `json:"profile_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NotificationQueuedPayload payload.
type NotificationQueuedPayload struct {
	Recipient    string    `json:"recipient"`
	Mode         string    `json:"mode"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NotificationSentPayload payload.
type NotificationSentPayload struct {
	Recipient string        `json:"recipient"`
	Mode      string        `json:"mode"`
	Latency   time.Duration `json:"latency"`
}

// NotificationFailedPayload payload.
type NotificationFailedPayload struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// NotificationSkippedPayload payload.
type NotificationSkippedPayload struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// QueueItemParkedPayload payload.
type QueueItemParkedPayload struct {
	ItemID     string `json:"item_id"`
	Recipient  string `json:"recipient"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

// QueueSampledPayload carries queue gauge readings taken after a worker pass.
type QueueSampledPayload struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// JobCompletedPayload payload.
type JobCompletedPayload struct {
	Mode     domain.JobMode   `json:"mode"`
	Counts   domain.JobCounts `json:"counts"`
	Duration time.Duration    `json:"duration"`
}
