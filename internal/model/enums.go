package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// PipelineStep is the fine-grained position of a job inside the pipeline,
// used for progress display. It only ever advances.
type PipelineStep string

const (
	StepUpload  PipelineStep = "upload"
	StepASR     PipelineStep = "asr"
	StepTTS     PipelineStep = "tts"
	StepWav2Lip PipelineStep = "wav2lip"
	StepDone    PipelineStep = "done"
	StepError   PipelineStep = "error"
)

// Progress milestones emitted by the pipeline worker. Values are fixed
// checkpoints, not continuous measurements; ProgressError is the sentinel
// for a failed pipeline.
const (
	ProgressUploaded    = 10
	ProgressTranscribed = 30
	ProgressSynthStart  = 40
	ProgressSynthDone   = 65
	ProgressLipStart    = 70
	ProgressLipDone     = 95
	ProgressComplete    = 100
	ProgressError       = -1
)
