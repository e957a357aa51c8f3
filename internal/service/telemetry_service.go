package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/events"
	"github.com/spec-kit/expiry-notifier/internal/observability"
)

// TelemetryService turns notification lifecycle events into metrics and
// structured log lines, keeping the send paths free of instrumentation.
type TelemetryService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewTelemetryService creates the service.
func NewTelemetryService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *TelemetryService {
	return &TelemetryService{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (t *TelemetryService) RegisterHandlers() {
	if t.dispatcher == nil {
		return
	}
	t.dispatcher.Subscribe(events.EventNotificationQueued, t.handleNotificationQueued)
	t.dispatcher.Subscribe(events.EventNotificationSent, t.handleNotificationSent)
	t.dispatcher.Subscribe(events.EventNotificationFailed, t.handleNotificationFailed)
	t.dispatcher.Subscribe(events.EventNotificationSkipped, t.handleNotificationSkipped)
	t.dispatcher.Subscribe(events.EventQueueItemParked, t.handleQueueItemParked)
	t.dispatcher.Subscribe(events.EventQueueSampled, t.handleQueueSampled)
	t.dispatcher.Subscribe(events.EventJobCompleted, t.handleJobCompleted)
}

func (t *TelemetryService) handleNotificationQueued(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.NotificationQueuedPayload); ok {
		t.logger.Info("NotificationQueued",
			zap.String("profile_id", event.ProfileID),
			zap.String("recipient", p.Recipient),
			zap.Time("scheduled_for", p.ScheduledFor))
	}
	return nil
}

func (t *TelemetryService) handleNotificationSent(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.NotificationSentPayload); ok {
		t.metrics.RecordSent(p.Mode, p.Latency)
		t.logger.Info("NotificationSent",
			zap.String("profile_id", event.ProfileID),
			zap.String("recipient", p.Recipient),
			zap.String("mode", p.Mode),
			zap.Duration("latency", p.Latency))
	}
	return nil
}

func (t *TelemetryService) handleNotificationFailed(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.NotificationFailedPayload); ok {
		t.metrics.RecordFailed()
		t.logger.Warn("NotificationFailed",
			zap.String("profile_id", event.ProfileID),
			zap.String("recipient", p.Recipient),
			zap.String("reason", p.Reason))
	}
	return nil
}

func (t *TelemetryService) handleNotificationSkipped(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.NotificationSkippedPayload); ok {
		t.metrics.RecordSkipped(p.Reason)
		t.logger.Info("NotificationSkipped",
			zap.String("profile_id", event.ProfileID),
			zap.String("recipient", p.Recipient),
			zap.String("reason", p.Reason))
	}
	return nil
}

func (t *TelemetryService) handleQueueItemParked(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.QueueItemParkedPayload); ok {
		t.logger.Warn("QueueItemParked",
			zap.String("item_id", p.ItemID),
			zap.String("recipient", p.Recipient),
			zap.Int("retry_count", p.RetryCount),
			zap.String("reason", p.Reason))
	}
	return nil
}

func (t *TelemetryService) handleQueueSampled(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.QueueSampledPayload); ok {
		t.metrics.SetQueueGauges(p.Pending, p.Failed)
	}
	return nil
}

func (t *TelemetryService) handleJobCompleted(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.JobCompletedPayload); ok {
		t.metrics.RecordJobRun(string(p.Mode), p.Duration)
		t.logger.Info("JobCompleted",
			zap.String("profile_id", event.ProfileID),
			zap.String("mode", string(p.Mode)),
			zap.Int("matched", p.Counts.Matched),
			zap.Int("sent", p.Counts.Sent),
			zap.Int("queued", p.Counts.Queued),
			zap.Int("skipped", p.Counts.Skipped),
			zap.Int("failed", p.Counts.Failed),
			zap.Duration("duration", p.Duration))
	}
	return nil
}
