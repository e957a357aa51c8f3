package domain

import "time"

// AllUsersGroupName is the reserved group assignment that targets the whole
// directory instead of a named group.
const AllUsersGroupName = "All Users"

// RecipientPolicy controls where a profile's notifications are delivered.
type RecipientPolicy struct {
	ToUser      bool     `json:"to_user"`
	ToManager   bool     `json:"to_manager"`
	CC          []string `json:"cc"`
	ReadReceipt bool     `json:"read_receipt"`
}

// NotificationProfile is a stored notification campaign: which users it
// targets, on which days before expiry it fires, and what it sends.
type NotificationProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	SubjectTemplate string          `json:"subject_template"`
	BodyTemplate    string          `json:"body_template"`
	CadenceDays     []int           `json:"cadence_days"`
	Recipients      RecipientPolicy `json:"recipients"`
	AssignedGroups  []string        `json:"assigned_groups"`
	PreferredTime   string          `json:"preferred_time,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TargetsAllUsers reports whether the profile is assigned the reserved
// whole-directory group.
func (p NotificationProfile) TargetsAllUsers() bool {
	for _, g := range p.AssignedGroups {
		if g == AllUsersGroupName {
			return true
		}
	}
	return false
}
