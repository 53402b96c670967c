// Package store holds the authoritative in-memory registry of job records.
// Job history does not survive a restart; that is a deliberate trade-off of
// the service, not an oversight.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxdub/api/internal/model"
)

// ErrNotFound is returned for any operation on an unknown job id.
var ErrNotFound = errors.New("job not found")

// JobStore is a mutex-guarded map of job records. All operations return
// immediately; none blocks on I/O. Get and List hand out copies so callers
// never alias store-owned state.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string
}

func New() *JobStore {
	return &JobStore{
		jobs: make(map[string]*model.Job),
	}
}

// Create assigns a unique id, stamps the record as queued and inserts it.
// It returns the assigned id.
func (s *JobStore) Create(job *model.Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()[:8]
	for _, exists := s.jobs[id]; exists; _, exists = s.jobs[id] {
		id = uuid.New().String()[:8]
	}

	job.ID = id
	job.Status = model.JobStatusQueued
	job.CurrentStep = model.StepUpload
	job.CreatedAt = time.Now()
	if job.Segments == nil {
		job.Segments = []model.Segment{}
	}

	s.jobs[id] = clone(job)
	s.order = append(s.order, id)
	return id
}

// Get returns a copy of the job or ErrNotFound.
func (s *JobStore) Get(id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(job), nil
}

// List returns a snapshot of all jobs in insertion order.
func (s *JobStore) List() []*model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.Job, 0, len(s.order))
	for _, id := range s.order {
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, clone(job))
		}
	}
	return jobs
}

// Update applies mutate to the stored record while holding the lock.
// The mutator must not block.
func (s *JobStore) Update(id string, mutate func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(job)
	return nil
}

// Delete removes the record and returns it, or ErrNotFound.
func (s *JobStore) Delete(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return job, nil
}

func clone(job *model.Job) *model.Job {
	c := *job
	c.Segments = make([]model.Segment, len(job.Segments))
	copy(c.Segments, job.Segments)
	if job.Error != nil {
		msg := *job.Error
		c.Error = &msg
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
