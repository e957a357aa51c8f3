package domain

import "time"

// JobMode selects how a notification job treats the real world.
type JobMode string

const (
	// JobModePreview evaluates matches without sending, queueing or auditing.
	JobModePreview JobMode = "preview"
	// JobModeTest delivers real mail but reroutes every message to a single
	// test recipient and records nothing in the audit ledger.
	JobModeTest JobMode = "test"
	// JobModeLive delivers to the resolved recipients with duplicate
	// suppression and audit recording.
	JobModeLive JobMode = "live"
)

// ParseJobMode validates a mode string from the API or CLI.
func ParseJobMode(raw string) (JobMode, bool) {
	switch JobMode(raw) {
	case JobModePreview, JobModeTest, JobModeLive:
		return JobMode(raw), true
	}
	return "", false
}

// RunLogLevel severity of one run log line.
type RunLogLevel string

const (
	RunLogInfo  RunLogLevel = "info"
	RunLogWarn  RunLogLevel = "warn"
	RunLogError RunLogLevel = "error"
)

// RunLogEntry is one line of the operator-facing narrative a job run emits.
type RunLogEntry struct {
	At      time.Time   `json:"at"`
	Level   RunLogLevel `json:"level"`
	Message string      `json:"message"`
}

// PreviewRow describes one user a preview run would have notified.
type PreviewRow struct {
	DisplayName   string     `json:"display_name"`
	PrincipalName string     `json:"principal_name"`
	Group         string     `json:"group"`
	DaysRemaining int        `json:"days_remaining"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// JobCounts tallies the dispositions of one job run.
type JobCounts struct {
	Matched int `json:"matched"`
	Sent    int `json:"sent"`
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// JobResult is everything a finished (or aborted) job run reports back to the
// API and CLI surfaces.
type JobResult struct {
	ProfileID   string        `json:"profile_id"`
	ProfileName string        `json:"profile_name"`
	Mode        JobMode       `json:"mode"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Counts      JobCounts     `json:"counts"`
	Logs        []RunLogEntry `json:"logs"`
	Preview     []PreviewRow  `json:"preview,omitempty"`
}
