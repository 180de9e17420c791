package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"gorm.io/gorm"
)

// SystemLogRetention is how long operational error logs are kept. The
// moderation audit log is never pruned.
const SystemLogRetention = 30 * 24 * time.Hour

// StartCleanup runs a daily goroutine that deletes system_logs older than
// SystemLogRetention until ctx is done.
func StartCleanup(ctx context.Context, db *gorm.DB) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := PruneSystemLogs(ctx, db, time.Now().UTC().Add(-SystemLogRetention)); err != nil {
					slog.Error("log cleanup failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PruneSystemLogs deletes system logs older than cutoff.
func PruneSystemLogs(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
