package tasks

// RegisterAllTasks returns the map of all scheduled tasks. The keys
// match the task names used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	taskMap := map[string]ScheduledTaskFunc{
		"weekly_summary":  newWeeklySummaryTask(deps),
		"sql_maintenance": newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(taskMap))
	return taskMap
}
