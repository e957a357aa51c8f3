package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/audit"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/mail"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	"github.com/spec-kit/expiry-notifier/internal/settings"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []mail.Message
	fail bool
}

func (f *fakeTransport) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("relay unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type workerFixture struct {
	worker    *Worker
	queue     *queue.DeliveryQueue
	ledger    *audit.Ledger
	clk       clock.FakeClock
	transport *fakeTransport
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	store := persistence.NewMemoryStore()
	settingsStore := settings.NewStore(store, zap.NewNop())
	cfg := settings.Defaults()
	cfg.SMTP = settings.SMTPSettings{Host: "relay.example.com", Port: 587, From: "it@example.com"}
	require.NoError(t, settingsStore.Save(context.Background(), cfg))

	q := queue.NewDeliveryQueue(store, clk)
	ledger := audit.NewLedger(store, clk, zap.NewNop())
	transport := &fakeTransport{}

	w := New(Dependencies{
		Queue:     q,
		Settings:  settingsStore,
		Ledger:    ledger,
		Transport: func(settings.SMTPSettings) mail.Transport { return transport },
		Clock:     clk,
		Logger:    zap.NewNop(),
	})
	return &workerFixture{worker: w, queue: q, ledger: ledger, clk: clk, transport: transport}
}

func enqueueDue(t *testing.T, fx *workerFixture) domain.QueueItem {
	t.Helper()
	item, err := fx.queue.Enqueue(context.Background(), domain.QueueItem{
		ScheduledFor: fx.clk.Now().Add(-time.Minute),
		Recipient:    "amy@example.com",
		Subject:      "password expires soon",
		Body:         "change it",
		ProfileID:    "p1",
		ProfileName:  "Expiry warnings",
	})
	require.NoError(t, err)
	return item
}

func TestTickDeliversDueItem(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()
	enqueueDue(t, fx)

	fx.worker.tick(ctx)

	require.Equal(t, 1, fx.transport.sentCount())
	assert.Equal(t, "it@example.com", fx.transport.sent[0].From)
	assert.Equal(t, "amy@example.com", fx.transport.sent[0].To)

	items, err := fx.queue.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "delivered item leaves the queue")

	day := audit.DateKey(fx.clk.Now())
	assert.True(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day))
}

func TestTickLeavesFutureItems(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	_, err := fx.queue.Enqueue(ctx, domain.QueueItem{
		ScheduledFor: fx.clk.Now().Add(2 * time.Hour),
		Recipient:    "amy@example.com",
		ProfileID:    "p1",
	})
	require.NoError(t, err)

	fx.worker.tick(ctx)
	assert.Zero(t, fx.transport.sentCount())

	fx.clk.Add(3 * time.Hour)
	fx.worker.tick(ctx)
	assert.Equal(t, 1, fx.transport.sentCount())
}

func TestTickRetriesThenParks(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()
	item := enqueueDue(t, fx)
	fx.transport.fail = true

	for i := 1; i <= queue.MaxDeliveryAttempts; i++ {
		fx.worker.tick(ctx)

		items, err := fx.queue.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, i, items[0].RetryCount)
		if i < queue.MaxDeliveryAttempts {
			assert.Equal(t, domain.QueueItemPending, items[0].Status)
		} else {
			assert.Equal(t, domain.QueueItemFailed, items[0].Status)
		}
	}

	// parked items are out of the worker's reach even after the relay
	// recovers
	fx.transport.fail = false
	fx.worker.tick(ctx)
	assert.Zero(t, fx.transport.sentCount())

	items, err := fx.queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, "relay unavailable", items[0].LastError)

	day := audit.DateKey(fx.clk.Now())
	assert.False(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day))
}

func TestTickReportsCurrentInterval(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	assert.Equal(t, 30*time.Second, fx.worker.tick(ctx))

	cfg := fx.worker.deps.Settings.Load(ctx)
	cfg.WorkerIntervalSeconds = 120
	require.NoError(t, fx.worker.deps.Settings.Save(ctx, cfg))

	assert.Equal(t, 2*time.Minute, fx.worker.tick(ctx))
}

func TestRunStopsOnCancel(t *testing.T) {
	fx := newWorkerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
