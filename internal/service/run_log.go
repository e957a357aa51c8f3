package service

import (
	"fmt"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/domain"
)

// runLog collects the operator-facing narrative of one job run and mirrors
// every line to the structured logger.
type runLog struct {
	clk     clock.Clock
	logger  *zap.Logger
	entries []domain.RunLogEntry
}

func newRunLog(clk clock.Clock, logger *zap.Logger) *runLog {
	return &runLog{clk: clk, logger: logger}
}

func (r *runLog) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg)
	r.append(domain.RunLogInfo, msg)
}

func (r *runLog) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(msg)
	r.append(domain.RunLogWarn, msg)
}

func (r *runLog) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Error(msg)
	r.append(domain.RunLogError, msg)
}

func (r *runLog) append(level domain.RunLogLevel, msg string) {
	r.entries = append(r.entries, domain.RunLogEntry{
		At:      r.clk.Now(),
		Level:   level,
		Message: msg,
	})
}

func (r *runLog) Entries() []domain.RunLogEntry {
	return r.entries
}
