package service

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/voxdub/api/internal/model"
)

func newPipelineTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(model.PipelinePayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePipeline, payload), nil
}
