package expiry

import "github.com/spec-kit/expiry-notifier/internal/domain"

// MatchesCadence reports whether a user's expiry state lines up with one of
// the profile's notification days. The match is exact: a profile configured
// for day 14 fires only when exactly 14 days remain, so a missed run is not
// retroactively caught up on a later day.
//
// Non-expiring accounts never match, even if a cadence lists the sentinel
// value.
func MatchesCadence(state domain.ExpiryState, profile domain.NotificationProfile) bool {
	if state.NeverExpires {
		return false
	}
	for _, day := range profile.CadenceDays {
		if state.DaysRemaining == day {
			return true
		}
	}
	return false
}
