package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TaskTypeWrite is the asynq task type carrying one audit entry.
const TaskTypeWrite = "audit:write"

// AsynqDispatcher enqueues audit writes for the background worker, keeping
// the recording caller off the database's critical path. Ordering within one
// request is preserved by enqueueing before the handler returns;
// cross-request ordering is established by timestamps, not sequence.
type AsynqDispatcher struct {
	client *asynq.Client
}

// NewAsynqDispatcher wraps an asynq client.
func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

// Dispatch implements Dispatcher.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeWrite, payload))
	return err
}

// NewWriteTaskHandler returns the worker-side handler persisting dispatched
// entries. A malformed payload is dropped rather than retried forever.
func NewWriteTaskHandler(repo RepositoryPort, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var e Entry
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			if logger != nil {
				logger.Error("audit task payload corrupt", slog.Any("error", err))
			}
			return asynq.SkipRetry
		}
		return repo.Insert(ctx, e)
	}
}
