// Package logging builds the slog loggers used across loopforge and defines
// the standardized structured field names shared by all stages.
package logging
