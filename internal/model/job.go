package model

import "time"

// Job represents one end-to-end dubbing request and its tracked state.
// The store is the single source of truth for these records; they live in
// memory only and are lost on restart.
type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	CurrentStep PipelineStep `json:"currentStep"`
	Filename    string       `json:"filename"`
	FileSizeMB  float64      `json:"fileSizeMb"`
	UseHD       bool         `json:"useHd"`
	Segments    []Segment    `json:"segments"`
	Transcript  string       `json:"transcript"`
	Error       *string      `json:"error,omitempty"`
	InputPath   string       `json:"-"`
	OutputPath  string       `json:"-"`
	OutputURL   string       `json:"outputUrl,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Segment is one timed span of source speech and its translated text.
// Segments are produced once by the transcription stage and are read-only
// afterwards; an empty Text marks a silence span the synthesis stage skips.
type Segment struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
	Text  string  `json:"text"`
}

// PipelinePayload is the asynq task body for a pipeline run.
type PipelinePayload struct {
	JobID string `json:"jobId"`
}
