package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"civictrust/internal/ledger/merkle"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/requestcontext"
)

// PoolSealer is the orchestrator operation the job runs.
type PoolSealer interface {
	SealPool(ctx context.Context, poolID domain.PoolID) (*merkle.SealResult, error)
}

// SealJob handles TaskSealPool.
type SealJob struct {
	sealer PoolSealer
	logger *slog.Logger
	clock  func() time.Time
}

func NewSealJob(sealer PoolSealer, logger *slog.Logger) *SealJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SealJob{
		sealer: sealer,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle seals the pool named in the payload. A pool that is already
// sealed or gone is done, not failed; transient errors are retried.
func (j *SealJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.sealer == nil {
		return errors.New("seal job: handler not configured")
	}
	var payload SealPoolPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode seal payload: %v: %w", err, asynq.SkipRetry)
	}
	poolID, err := domain.ParsePoolID(payload.PoolID)
	if err != nil {
		return fmt.Errorf("seal payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	ctx = requestcontext.WithRequestID(ctx, "task-"+taskID)
	ctx = requestcontext.WithTime(ctx, j.clock())
	logger := j.logger.With("pool_id", poolID.String(), "task_id", taskID)

	start := time.Now()
	res, err := j.sealer.SealPool(ctx, poolID)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "pool sealed by worker",
			"merkle_root", res.Root.String(),
			"leaf_count", res.LeafCount,
			"duration", time.Since(start),
		)
		return nil
	case dErrors.HasCode(err, dErrors.CodeIllegalStateTransition):
		logger.InfoContext(ctx, "seal skipped", "reason", err.Error())
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		logger.WarnContext(ctx, "seal task for unknown pool")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case dErrors.HasCode(err, dErrors.CodeCryptographicFailure):
		logger.ErrorContext(ctx, "seal hashing failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.WarnContext(ctx, "seal failed, will retry", "error", err)
		return err
	}
}
