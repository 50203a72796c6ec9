package broker

import (
	"log/slog"

	"go.temporal.io/sdk/log"
)

// slogAdapter routes SDK logs through the process-wide slog logger, so they
// share its level, format, and rotation.
type slogAdapter struct {
	logger *slog.Logger
}

var _ log.Logger = slogAdapter{}

func newLogAdapter() slogAdapter {
	return slogAdapter{logger: slog.Default().With("component", "temporal")}
}

func (a slogAdapter) Debug(msg string, keyvals ...interface{}) { a.logger.Debug(msg, keyvals...) }
func (a slogAdapter) Info(msg string, keyvals ...interface{})  { a.logger.Info(msg, keyvals...) }
func (a slogAdapter) Warn(msg string, keyvals ...interface{})  { a.logger.Warn(msg, keyvals...) }
func (a slogAdapter) Error(msg string, keyvals ...interface{}) { a.logger.Error(msg, keyvals...) }
