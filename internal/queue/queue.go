// Package queue implements the durable delivery queue. Items are persisted
// in the queue collection, picked up by the worker when due, and retried up
// to the attempt budget before being parked as failed.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
)

// MaxDeliveryAttempts is the total number of delivery attempts an item gets
// before it is parked as failed.
const MaxDeliveryAttempts = 3

// ErrNotFound reports an operation on a queue item that is not in the queue.
var ErrNotFound = errors.New("queue item not found")

// DeliveryQueue serializes access to the queue collection. The persisted
// collection is the source of truth; every operation reloads it, mutates and
// saves, so a restart never loses accepted items.
type DeliveryQueue struct {
	mu    sync.Mutex
	store persistence.Store
	clk   clock.Clock
}

func NewDeliveryQueue(store persistence.Store, clk clock.Clock) *DeliveryQueue {
	return &DeliveryQueue{store: store, clk: clk}
}

// Enqueue assigns the item an ID, stamps it pending and persists it.
func (q *DeliveryQueue) Enqueue(ctx context.Context, item domain.QueueItem) (domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return domain.QueueItem{}, err
	}

	item.ID = uuid.NewString()
	item.Status = domain.QueueItemPending
	item.RetryCount = 0
	item.CreatedAt = q.clk.Now()

	items = append(items, item)
	if err := q.save(ctx, items); err != nil {
		return domain.QueueItem{}, err
	}
	return item, nil
}

// List returns a copy of every queued item, due or not, including parked
// failures.
func (q *DeliveryQueue) List(ctx context.Context) ([]domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QueueItem, len(items))
	copy(out, items)
	return out, nil
}

// DequeueDue returns the pending items whose scheduled time has arrived.
// Failed items are never returned; they stay parked until an operator
// removes them.
func (q *DeliveryQueue) DequeueDue(ctx context.Context, now time.Time) ([]domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	var due []domain.QueueItem
	for _, it := range items {
		if it.Status == domain.QueueItemPending && !it.ScheduledFor.After(now) {
			due = append(due, it)
		}
	}
	return due, nil
}

// MarkSending flags an item as in flight so a concurrent pass does not pick
// it up again.
func (q *DeliveryQueue) MarkSending(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].Status = domain.QueueItemSending
			return q.save(ctx, items)
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// MarkSent removes a delivered item from the queue.
func (q *DeliveryQueue) MarkSent(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	return q.save(ctx, kept)
}

// MarkRetry records a failed attempt. The item returns to pending until the
// attempt budget is spent, then parks as failed; a parked item is never
// retried again.
func (q *DeliveryQueue) MarkRetry(ctx context.Context, id string, reason string) (domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return domain.QueueItem{}, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i].RetryCount++
		items[i].LastError = reason
		if items[i].RetryCount >= MaxDeliveryAttempts {
			items[i].Status = domain.QueueItemFailed
		} else {
			items[i].Status = domain.QueueItemPending
		}
		updated := items[i]
		if err := q.save(ctx, items); err != nil {
			return domain.QueueItem{}, err
		}
		return updated, nil
	}
	return domain.QueueItem{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Remove deletes a single item regardless of status.
func (q *DeliveryQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	found := false
	for _, it := range items {
		if it.ID == id {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return q.save(ctx, kept)
}

// Clear empties the queue, parked failures included.
func (q *DeliveryQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(ctx, []domain.QueueItem{})
}

// Counts reports how many items sit in each state.
func (q *DeliveryQueue) Counts(ctx context.Context) (pending, failed int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, it := range items {
		switch it.Status {
		case domain.QueueItemFailed:
			failed++
		default:
			pending++
		}
	}
	return pending, failed, nil
}

func (q *DeliveryQueue) load(ctx context.Context) ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	if err := q.store.LoadCollection(ctx, persistence.CollectionQueue, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *DeliveryQueue) save(ctx context.Context, items []domain.QueueItem) error {
	return q.store.SaveCollection(ctx, persistence.CollectionQueue, items)
}
