package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskTypeSessionCleanup is the periodic task pruning expired login
// session records.
const TaskTypeSessionCleanup = "sessions:cleanup"

// NewSessionCleanupTask constructs the cron task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionCleanup, nil)
}

// NewSessionCleanupHandler deletes session rows past their expiry. Redis
// evicts the live sessions by TTL on its own; this only trims the postgres
// audit copy.
func NewSessionCleanupHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tag, err := pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
		if err != nil {
			if logger != nil {
				logger.Error("session cleanup", slog.Any("error", err))
			}
			return err
		}
		if logger != nil && tag.RowsAffected() > 0 {
			logger.Info("session cleanup", slog.Int64("removed", tag.RowsAffected()))
		}
		return nil
	}
}
