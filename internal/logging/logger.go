package logging

import (
	"log/slog"
	"os"
	"strings"

	"gorm.io/gorm"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// AttachDB routes ERROR+ records to the system_logs table in addition to
// stdout. The returned handler must be stopped on shutdown to flush.
func AttachDB(db *gorm.DB, level slog.Level) *DBHandler {
	dbHandler := NewDBHandler(db)
	slog.SetDefault(slog.New(NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
		dbHandler,
	)))
	return dbHandler
}

// ParseLevel maps debug, info, warn and error to a slog level. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
