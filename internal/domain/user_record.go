package domain

import "time"

// UserRecord is an immutable snapshot of a directory identity as returned by
// the directory client. It is never persisted; every job run works from a
// fresh fetch.
type UserRecord struct {
	ID                   string
	DisplayName          string
	PrincipalName        string
	AccountEnabled       bool
	LastPasswordChangeAt *time.Time
	CreatedAt            *time.Time
	OnPremisesSync       bool
	PasswordPolicies     string
}
