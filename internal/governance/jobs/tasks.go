// Package jobs runs pool seals in the background worker. The orchestrator
// enqueues a seal when a pool reaches quorum; the worker executes it.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"civictrust/pkg/domain"
)

const (
	// QueueSeals carries seal tasks only, so a backlog of other work never
	// delays a seal.
	QueueSeals = "seals"
	// TaskSealPool seals one signature pool.
	TaskSealPool = "pool:seal"

	defaultSealMaxRetry = 5
)

// SealPoolPayload identifies the pool to seal.
type SealPoolPayload struct {
	PoolID string `json:"pool_id"`
}

// NewSealPoolTask builds a seal task. The task id is derived from the pool
// id, so scheduling the same pool twice queues one task.
func NewSealPoolTask(poolID domain.PoolID) (*asynq.Task, error) {
	body, err := json.Marshal(SealPoolPayload{PoolID: poolID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSealPool, body,
		asynq.Queue(QueueSeals),
		asynq.TaskID(sealTaskID(poolID)),
		asynq.MaxRetry(defaultSealMaxRetry),
	), nil
}

func sealTaskID(poolID domain.PoolID) string {
	return "seal:" + poolID.String()
}
