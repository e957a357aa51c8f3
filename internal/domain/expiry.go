package domain

import "time"

// NeverExpiresDays is the sentinel daysRemaining value reported for accounts
// whose password never expires or whose expiry cannot be computed.
const NeverExpiresDays = 999

// ExpiryState is the derived password-expiry status of a single user at a
// single point in time.
type ExpiryState struct {
	ReferenceAt   *time.Time
	ExpiresAt     *time.Time
	DaysRemaining int
	NeverExpires  bool
}
