package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"civictrust/pkg/domain"
)

// Enqueuer is the slice of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SealScheduler implements ports.SealScheduler on an asynq queue.
type SealScheduler struct {
	client Enqueuer
	logger *slog.Logger
}

func NewSealScheduler(client Enqueuer, logger *slog.Logger) *SealScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SealScheduler{client: client, logger: logger}
}

// ScheduleSeal queues a seal for poolID. A seal already queued for the pool
// counts as success.
func (s *SealScheduler) ScheduleSeal(ctx context.Context, poolID domain.PoolID) error {
	task, err := NewSealPoolTask(poolID)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.logger.DebugContext(ctx, "seal already queued", "pool_id", poolID.String())
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "seal queued",
		"pool_id", poolID.String(),
		"task_id", info.ID,
		"queue", info.Queue,
	)
	return nil
}
