// Package worker drains the delivery queue in the background: due items are
// delivered, failures retried, exhausted items parked.
package worker

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/audit"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/events"
	"github.com/spec-kit/expiry-notifier/internal/mail"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	"github.com/spec-kit/expiry-notifier/internal/settings"
)

// sendTimeout bounds one SMTP conversation.
const sendTimeout = 60 * time.Second

// TransportFactory builds a mail transport from the SMTP settings current at
// tick time, so relay changes apply without a restart.
type TransportFactory func(cfg settings.SMTPSettings) mail.Transport

// Dependencies wires the worker.
type Dependencies struct {
	Queue      *queue.DeliveryQueue
	Settings   *settings.Store
	Ledger     *audit.Ledger
	Transport  TransportFactory
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Worker polls the queue on the interval configured in settings.
type Worker struct {
	deps Dependencies
}

func New(deps Dependencies) *Worker {
	return &Worker{deps: deps}
}

// Run blocks until ctx is canceled. A tick that is already delivering
// finishes before the worker returns; only the loop observes cancellation.
func (w *Worker) Run(ctx context.Context) {
	cfg := w.deps.Settings.Load(context.Background())
	interval := cfg.WorkerInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.deps.Logger.Info("queue worker started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			w.deps.Logger.Info("queue worker stopped")
			return
		case <-ticker.C:
			next := w.tick(context.Background())
			if next != interval {
				w.deps.Logger.Info("queue worker interval changed",
					zap.Duration("old", interval), zap.Duration("new", next))
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// tick processes every due item once and returns the interval for the next
// tick, re-read from settings so operators can retune the worker live.
func (w *Worker) tick(ctx context.Context) time.Duration {
	cfg := w.deps.Settings.Load(ctx)
	now := w.deps.Clock.Now()

	due, err := w.deps.Queue.DequeueDue(ctx, now)
	if err != nil {
		w.deps.Logger.Error("queue read failed", zap.Error(err))
		return cfg.WorkerInterval()
	}
	if len(due) > 0 {
		w.deps.Logger.Info("processing due queue items", zap.Int("count", len(due)))
	}

	transport := w.deps.Transport(cfg.SMTP)
	for _, item := range due {
		w.deliver(ctx, transport, cfg, item)
	}

	w.sampleQueue(ctx)
	return cfg.WorkerInterval()
}

func (w *Worker) deliver(ctx context.Context, transport mail.Transport, cfg settings.Settings, item domain.QueueItem) {
	if err := w.deps.Queue.MarkSending(ctx, item.ID); err != nil {
		w.deps.Logger.Error("queue item claim failed", zap.String("id", item.ID), zap.Error(err))
		return
	}

	msg := mail.Message{
		From:        cfg.SMTP.From,
		To:          item.Recipient,
		CC:          item.CC,
		Subject:     item.Subject,
		Body:        item.Body,
		ReadReceipt: item.ReadReceipt,
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	start := w.deps.Clock.Now()
	err := transport.Send(sendCtx, msg)
	cancel()

	if err != nil {
		w.retry(ctx, item, err)
		return
	}

	if err := w.deps.Queue.MarkSent(ctx, item.ID); err != nil {
		w.deps.Logger.Error("queue item removal failed", zap.String("id", item.ID), zap.Error(err))
	}
	now := w.deps.Clock.Now()
	if err := w.deps.Ledger.RecordSent(ctx, item.Recipient, item.ProfileID, audit.DateKey(now), now); err != nil {
		w.deps.Logger.Error("history write failed after delivery",
			zap.String("recipient", item.Recipient), zap.Error(err))
	}

	w.deps.Logger.Info("queued notification delivered",
		zap.String("recipient", item.Recipient),
		zap.String("profile", item.ProfileName),
	)
	w.publish(ctx, events.Event{
		Type:      events.EventNotificationSent,
		ProfileID: item.ProfileID,
		Payload: events.NotificationSentPayload{
			Recipient: item.Recipient,
			Mode:      "queued",
			Latency:   now.Sub(start),
		},
	})
}

func (w *Worker) retry(ctx context.Context, item domain.QueueItem, sendErr error) {
	updated, err := w.deps.Queue.MarkRetry(ctx, item.ID, sendErr.Error())
	if err != nil {
		w.deps.Logger.Error("queue retry bookkeeping failed", zap.String("id", item.ID), zap.Error(err))
		return
	}

	w.deps.Logger.Error("queued notification delivery failed",
		zap.String("recipient", item.Recipient),
		zap.Int("attempt", updated.RetryCount),
		zap.Error(sendErr),
	)
	w.publish(ctx, events.Event{
		Type:      events.EventNotificationFailed,
		ProfileID: item.ProfileID,
		Payload: events.NotificationFailedPayload{
			Recipient: item.Recipient,
			Reason:    sendErr.Error(),
		},
	})

	if updated.Status == domain.QueueItemFailed {
		w.deps.Logger.Error("queue item parked after exhausting retries",
			zap.String("id", item.ID),
			zap.String("recipient", item.Recipient),
		)
		w.publish(ctx, events.Event{
			Type:      events.EventQueueItemParked,
			ProfileID: item.ProfileID,
			Payload: events.QueueItemParkedPayload{
				ItemID:     updated.ID,
				Recipient:  updated.Recipient,
				RetryCount: updated.RetryCount,
				Reason:     sendErr.Error(),
			},
		})
	}
}

func (w *Worker) sampleQueue(ctx context.Context) {
	pending, failed, err := w.deps.Queue.Counts(ctx)
	if err != nil {
		return
	}
	w.publish(ctx, events.Event{
		Type:    events.EventQueueSampled,
		Payload: events.QueueSampledPayload{Pending: pending, Failed: failed},
	})
}

func (w *Worker) publish(ctx context.Context, event events.Event) {
	if w.deps.Dispatcher == nil {
		return
	}
	_ = w.deps.Dispatcher.Publish(ctx, event)
}
