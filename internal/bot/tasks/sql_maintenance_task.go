package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask creates the task that runs periodic database
// maintenance (VACUUM/ANALYZE).
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		if err := deps.Store.RunSQLMaintenance(runCtx); err != nil {
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(runCtx, "Database maintenance completed")
		return nil
	}
}
