package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger, installs it as the slog default, and
// tags every record with the binary name.
func NewLogger(level, format, component string) *slog.Logger {
	logger := sharedobs.NewLogger(level, format)
	if component != "" {
		logger = logger.With("component", component)
		slog.SetDefault(logger)
	}
	return logger
}
