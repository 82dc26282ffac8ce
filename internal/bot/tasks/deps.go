// Package tasks implements the scheduled background tasks and their
// registry.
package tasks

import (
	"context"
	"log/slog"

	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/summarize"
)

// ScheduledTaskFunc is the signature shared by all scheduled tasks. The
// scheduler's context should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger     *slog.Logger
	Store      database.Store
	Summarizer *summarize.Summarizer
}
