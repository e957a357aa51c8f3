// Package settings holds the operator-tunable configuration persisted in the
// settings collection: directory credentials, SMTP relay, the default expiry
// window and the queue worker interval.
package settings

import (
	"fmt"
	"time"
)

// MaskedSecret is returned in place of stored secrets on reads. A client
// sending the sentinel back on update keeps the stored value.
const MaskedSecret = "********"

const (
	defaultWindowDays     = 90
	defaultWorkerInterval = 30
	defaultSMTPPort       = 587
	minWorkerIntervalSecs = 5
	maxDefaultWindowYears = 10
)

// DirectorySettings are the client-credential values for the directory
// tenant.
type DirectorySettings struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Configured reports whether all three credential values are present.
func (d DirectorySettings) Configured() bool {
	return d.TenantID != "" && d.ClientID != "" && d.ClientSecret != ""
}

// SMTPSettings describe the outbound mail relay.
type SMTPSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Settings is the full persisted settings document.
type Settings struct {
	Directory             DirectorySettings `json:"directory"`
	SMTP                  SMTPSettings      `json:"smtp"`
	DefaultWindowDays     int               `json:"default_window_days"`
	WorkerIntervalSeconds int               `json:"worker_interval_seconds"`
}

// Defaults returns the settings used before an operator saves anything.
func Defaults() Settings {
	return Settings{
		SMTP:                  SMTPSettings{Port: defaultSMTPPort},
		DefaultWindowDays:     defaultWindowDays,
		WorkerIntervalSeconds: defaultWorkerInterval,
	}
}

// WorkerInterval returns the queue worker polling interval, clamped to a
// sane floor so a bad value cannot spin the worker.
func (s Settings) WorkerInterval() time.Duration {
	secs := s.WorkerIntervalSeconds
	if secs < minWorkerIntervalSecs {
		secs = defaultWorkerInterval
	}
	return time.Duration(secs) * time.Second
}

// Masked returns a copy safe to return to clients: secrets that are set are
// replaced by the sentinel, unset ones stay empty.
func (s Settings) Masked() Settings {
	out := s
	if out.Directory.ClientSecret != "" {
		out.Directory.ClientSecret = MaskedSecret
	}
	if out.SMTP.Password != "" {
		out.SMTP.Password = MaskedSecret
	}
	return out
}

// Merge folds an incoming update into the current settings field by field.
// Secrets carrying the masked sentinel keep their stored value; numeric
// fields keep the current value when the update leaves them unset.
func Merge(current, incoming Settings) Settings {
	out := incoming

	if out.Directory.ClientSecret == MaskedSecret {
		out.Directory.ClientSecret = current.Directory.ClientSecret
	}
	if out.SMTP.Password == MaskedSecret {
		out.SMTP.Password = current.SMTP.Password
	}
	if out.SMTP.Port == 0 {
		out.SMTP.Port = current.SMTP.Port
	}
	if out.DefaultWindowDays == 0 {
		out.DefaultWindowDays = current.DefaultWindowDays
	}
	if out.WorkerIntervalSeconds == 0 {
		out.WorkerIntervalSeconds = current.WorkerIntervalSeconds
	}
	return out
}

// Validate rejects values that would break job evaluation or the worker.
func (s Settings) Validate() error {
	if s.DefaultWindowDays < 0 || s.DefaultWindowDays > maxDefaultWindowYears*365 {
		return fmt.Errorf("default_window_days out of range: %d", s.DefaultWindowDays)
	}
	if s.WorkerIntervalSeconds < 0 {
		return fmt.Errorf("worker_interval_seconds must not be negative")
	}
	if s.SMTP.Port < 0 || s.SMTP.Port > 65535 {
		return fmt.Errorf("smtp port out of range: %d", s.SMTP.Port)
	}
	return nil
}
