// Package expiry derives password-expiry state from directory user records
// and decides which users a notification profile fires for today.
package expiry

import (
	"math"
	"strings"
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// disablePasswordExpiration is the directory policy flag that marks a
// password as non-expiring. passwordPolicies is a comma-separated list.
const disablePasswordExpiration = "DisablePasswordExpiration"

// Compute derives the expiry state for one user against the given expiry
// window. The state is always computed fresh from the record; callers must
// not cache it across runs.
//
// The policy flag is trusted only for cloud-native accounts: when the record
// is synchronized from an on-premises directory the flag is ignored, because
// the authoritative expiry policy lives on-premises and the synchronized
// value is not reliable.
func Compute(user domain.UserRecord, windowDays int, now time.Time) domain.ExpiryState {
	if policyNeverExpires(user) && !user.OnPremisesSync {
		return domain.ExpiryState{
			NeverExpires:  true,
			DaysRemaining: domain.NeverExpiresDays,
		}
	}

	ref := referenceTime(user)
	if ref == nil {
		return domain.ExpiryState{
			NeverExpires:  true,
			DaysRemaining: domain.NeverExpiresDays,
		}
	}

	expires := ref.AddDate(0, 0, windowDays)
	return domain.ExpiryState{
		ReferenceAt:   ref,
		ExpiresAt:     &expires,
		DaysRemaining: daysUntil(expires, now),
	}
}

// referenceTime picks the baseline the expiry window counts from: the last
// password change when known, account creation otherwise.
func referenceTime(user domain.UserRecord) *time.Time {
	if user.LastPasswordChangeAt != nil {
		return user.LastPasswordChangeAt
	}
	return user.CreatedAt
}

func policyNeverExpires(user domain.UserRecord) bool {
	for _, p := range strings.Split(user.PasswordPolicies, ",") {
		if strings.TrimSpace(p) == disablePasswordExpiration {
			return true
		}
	}
	return false
}

// daysUntil counts the whole days remaining before expiry, rounding partial
// days up so that "expires later today" reports 1 until the moment has
// passed, and 0 exactly at the expiry instant. Past expiry the count goes
// negative.
func daysUntil(expires, now time.Time) int {
	return int(math.Ceil(expires.Sub(now).Hours() / 24))
}
