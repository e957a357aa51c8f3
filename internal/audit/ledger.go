// Package audit keeps the notification history: one entry per recipient,
// profile and calendar day. Live job runs consult it to suppress duplicate
// mail, operators read it through the API, and old entries are pruned on
// every write.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
)

// RetentionDays is how long history entries are kept before pruning.
const RetentionDays = 60

const dateKeyFormat = "2006-01-02"

// DateKey renders the calendar-day component of the suppression key in the
// local timezone of the given instant.
func DateKey(t time.Time) string {
	return t.Format(dateKeyFormat)
}

// Ledger serializes access to the history collection. The persisted file is
// the source of truth; every operation reloads it, mutates and saves.
type Ledger struct {
	mu     sync.Mutex
	store  persistence.Store
	clk    clock.Clock
	logger *zap.Logger
}

func NewLedger(store persistence.Store, clk clock.Clock, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, clk: clk, logger: logger}
}

// WasAlreadySent reports whether a sent entry exists for the recipient,
// profile and day. A read failure is logged and treated as "not sent": in a
// degraded state the service prefers a possible duplicate mail over silently
// notifying nobody.
func (l *Ledger) WasAlreadySent(ctx context.Context, recipient, profileID, dateKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		l.logger.Error("history unavailable, duplicate suppression disabled", zap.Error(err))
		return false
	}
	for _, e := range entries {
		if e.Outcome == domain.AuditOutcomeSent && e.Recipient == recipient && e.ProfileID == profileID && e.DateKey == dateKey {
			return true
		}
	}
	return false
}

// RecordSent appends a sent entry. Appending the same key twice is a no-op,
// so the enqueue-time record and the worker's delivery-time record for the
// same day collapse into one.
func (l *Ledger) RecordSent(ctx context.Context, recipient, profileID, dateKey string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Outcome == domain.AuditOutcomeSent && e.Recipient == recipient && e.ProfileID == profileID && e.DateKey == dateKey {
			return nil
		}
	}
	entries = append(entries, domain.AuditEntry{
		DateKey:   dateKey,
		Recipient: recipient,
		ProfileID: profileID,
		Outcome:   domain.AuditOutcomeSent,
		At:        at,
	})
	return l.save(ctx, entries)
}

// RecordSkipped appends a skipped entry for the duplicate-suppression path,
// so reruns leave a visible trace of what they deliberately did not send.
func (l *Ledger) RecordSkipped(ctx context.Context, recipient, profileID, dateKey string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, domain.AuditEntry{
		DateKey:   dateKey,
		Recipient: recipient,
		ProfileID: profileID,
		Outcome:   domain.AuditOutcomeSkipped,
		At:        at,
	})
	return l.save(ctx, entries)
}

// List returns history entries, newest first, capped at limit when limit is
// positive.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, len(entries))
	copy(out, entries)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) load(ctx context.Context) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	if err := l.store.LoadCollection(ctx, persistence.CollectionHistory, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// save prunes entries past retention and persists the collection.
func (l *Ledger) save(ctx context.Context, entries []domain.AuditEntry) error {
	cutoff := DateKey(l.clk.Now().AddDate(0, 0, -RetentionDays))
	kept := entries[:0]
	for _, e := range entries {
		if e.DateKey >= cutoff {
			kept = append(kept, e)
		}
	}
	return l.store.SaveCollection(ctx, persistence.CollectionHistory, kept)
}
