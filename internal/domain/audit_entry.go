package domain

import "time"

// AuditOutcome is the recorded disposition of one notification decision.
type AuditOutcome string

const (
	AuditOutcomeSent    AuditOutcome = "sent"
	AuditOutcomeSkipped AuditOutcome = "skipped"
)

// AuditEntry records that a recipient was notified (or deliberately skipped)
// for a profile on a given calendar day. The (DateKey, Recipient, ProfileID)
// triple is the duplicate-suppression key for live runs.
type AuditEntry struct {
	DateKey   string       `json:"date_key"`
	Recipient string       `json:"recipient"`
	ProfileID string       `json:"profile_id"`
	Outcome   AuditOutcome `json:"outcome"`
	At        time.Time    `json:"at"`
}
