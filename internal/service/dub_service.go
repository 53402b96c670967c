package service

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/hibiken/asynq"

	"github.com/voxdub/api/internal/media"
	"github.com/voxdub/api/internal/model"
	"github.com/voxdub/api/internal/store"
)

const TaskTypePipeline = "dub:pipeline"

// TaskEnqueuer is the slice of asynq.Client the service needs; tests swap
// in a fake so no redis is required.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DubService owns the job lifecycle on the gateway side: create a record,
// persist the upload, hand the job id to the pipeline queue.
type DubService struct {
	jobs        *store.JobStore
	media       *media.Store
	asynqClient TaskEnqueuer
}

func NewDubService(jobs *store.JobStore, mediaStore *media.Store, asynqClient TaskEnqueuer) *DubService {
	return &DubService{
		jobs:        jobs,
		media:       mediaStore,
		asynqClient: asynqClient,
	}
}

// CreateJob stores the uploaded media, registers a queued job and enqueues
// a pipeline run. It returns as soon as the task is queued; pipeline
// completion is observed through the job record or the progress channel.
func (s *DubService) CreateJob(ctx context.Context, filename string, useHD bool, file io.Reader) (*model.Job, error) {
	job := &model.Job{
		Filename: filename,
		UseHD:    useHD,
	}
	jobID := s.jobs.Create(job)

	inputPath, size, err := s.media.SaveUpload(jobID, filename, file)
	if err != nil {
		s.jobs.Delete(jobID)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	sizeMB := math.Round(float64(size)/(1024*1024)*100) / 100
	if err := s.jobs.Update(jobID, func(j *model.Job) {
		j.InputPath = inputPath
		j.FileSizeMB = sizeMB
	}); err != nil {
		return nil, err
	}

	task, err := newPipelineTask(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// MaxRetry(0): the pipeline never retries; a failure is recorded on the
	// job record instead.
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("pipeline"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		s.jobs.Delete(jobID)
		s.media.Remove(inputPath)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return s.jobs.Get(jobID)
}

// GetJob returns one job record.
func (s *DubService) GetJob(jobID string) (*model.Job, error) {
	return s.jobs.Get(jobID)
}

// ListJobs returns a snapshot of all job records in creation order.
func (s *DubService) ListJobs() []*model.Job {
	return s.jobs.List()
}

// DeleteJob removes the record and releases its media files. A pipeline
// already running for this job keeps going; it notices the missing record
// on its next store update and abandons the run.
func (s *DubService) DeleteJob(jobID string) error {
	job, err := s.jobs.Delete(jobID)
	if err != nil {
		return err
	}
	s.media.Remove(job.InputPath, job.OutputPath)
	return nil
}
