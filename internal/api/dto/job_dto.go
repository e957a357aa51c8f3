package dto

import (
	"time"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// RunJobRequest payload for running a profile's notification job.
type RunJobRequest struct {
	Mode          string `json:"mode"`
	TestRecipient string `json:"test_recipient"`
	ScheduleAt    string `json:"schedule_at"`
}

// RunJobResponse carries the run result. A directory outage aborts the run;
// the partial result and run log are still returned alongside the error.
type RunJobResponse struct {
	ProfileID   string               `json:"profile_id"`
	ProfileName string               `json:"profile_name"`
	Mode        domain.JobMode       `json:"mode"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	Counts      domain.JobCounts     `json:"counts"`
	Logs        []domain.RunLogEntry `json:"logs"`
	Preview     []domain.PreviewRow  `json:"preview,omitempty"`
	Error       string               `json:"error,omitempty"`
}
