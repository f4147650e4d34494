// Package debug holds the step tracing used by long-running commands.
package debug

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Output logs a formatted debug line when enabled.
func Output(log *zap.Logger, enabled bool, format string, args ...interface{}) {
	if !enabled || log == nil {
		return
	}
	log.Debug(fmt.Sprintf(format, args...))
}

// Timing logs the start of operation and returns a func that logs its duration.
// Use as: defer debug.Timing(log, enabled, "load references")()
func Timing(log *zap.Logger, enabled bool, operation string) func() {
	if !enabled || log == nil {
		return func() {}
	}

	start := time.Now()
	log.Debug("starting", zap.String("op", operation))

	return func() {
		log.Debug("completed", zap.String("op", operation), zap.Duration("took", time.Since(start)))
	}
}
