package dto

import (
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// ProfileRequest payload for create and full-replace update.
type ProfileRequest struct {
	Name            string                 `json:"name"`
	SubjectTemplate string                 `json:"subject_template"`
	BodyTemplate    string                 `json:"body_template"`
	CadenceDays     []int                  `json:"cadence_days"`
	Recipients      domain.RecipientPolicy `json:"recipients"`
	AssignedGroups  []string               `json:"assigned_groups"`
	PreferredTime   string                 `json:"preferred_time"`
}

// ProfileResponse full profile representation.
type ProfileResponse struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	SubjectTemplate string                 `json:"subject_template"`
	BodyTemplate    string                 `json:"body_template"`
	CadenceDays     []int                  `json:"cadence_days"`
	Recipients      domain.RecipientPolicy `json:"recipients"`
	AssignedGroups  []string               `json:"assigned_groups"`
	PreferredTime   string                 `json:"preferred_time,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}
