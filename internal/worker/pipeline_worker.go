// Package worker drives a dubbing job through the three downstream stages.
// There is no mid-pipeline cancellation and no stage retry: a single failed
// call fails the whole job, since partial pipeline state (an already
// uploaded video, a half-built audio track) is not cheap to retry and
// silent retries would mask a persistently broken downstream service.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/voxdub/api/internal/client"
	"github.com/voxdub/api/internal/media"
	"github.com/voxdub/api/internal/model"
	"github.com/voxdub/api/internal/storage"
	"github.com/voxdub/api/internal/store"
)

// ProgressNotifier receives progress events for live observers.
type ProgressNotifier interface {
	BroadcastProgress(jobID string, step model.PipelineStep, progress int, message string)
}

// stageFailure is the failure half of a stage outcome. Every pipeline
// failure path produces one and collapses to a single failed-job
// transition plus one error progress event.
type stageFailure struct {
	step    model.PipelineStep
	message string
}

func failf(step model.PipelineStep, format string, args ...any) *stageFailure {
	return &stageFailure{step: step, message: fmt.Sprintf(format, args...)}
}

// PipelineWorker processes dub:pipeline tasks.
type PipelineWorker struct {
	jobs     *store.JobStore
	media    *media.Store
	asr      client.Transcriber
	tts      client.Synthesizer
	lip      client.LipSyncer
	hub      ProgressNotifier
	archive  storage.Archiver
	validate *validator.Validate

	// Reference-audio fallback; swapped out in tests.
	extractRef func(ctx context.Context, videoPath string) ([]byte, error)
}

// NewPipelineWorker creates a pipeline worker. archive may be nil, in which
// case completed outputs stay on local disk only.
func NewPipelineWorker(
	jobs *store.JobStore,
	mediaStore *media.Store,
	asr client.Transcriber,
	tts client.Synthesizer,
	lip client.LipSyncer,
	hub ProgressNotifier,
	archive storage.Archiver,
	validate *validator.Validate,
) *PipelineWorker {
	return &PipelineWorker{
		jobs:       jobs,
		media:      mediaStore,
		asr:        asr,
		tts:        tts,
		lip:        lip,
		hub:        hub,
		archive:    archive,
		validate:   validate,
		extractRef: media.ExtractReferenceAudio,
	}
}

// ProcessTask runs the full pipeline for one job. It always returns nil:
// failures are recorded on the job record, never surfaced to asynq, so the
// queue never retries a failed pipeline.
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Printf("Dropping pipeline task with bad payload: %v", err)
		return nil
	}
	jobID := payload.JobID

	job, err := w.jobs.Get(jobID)
	if err != nil {
		// Record deleted between enqueue and pickup; tolerated.
		log.Printf("Dropping pipeline task for unknown job %s", jobID)
		return nil
	}
	log.Printf("Starting dubbing pipeline for job %s", jobID)

	if fail := w.run(ctx, job); fail != nil {
		w.failJob(jobID, fail)
	}
	return nil
}

// run drives the state machine: ASR → TTS → Wav2Lip → Done. Each store
// write lands before the matching progress event is emitted.
func (w *PipelineWorker) run(ctx context.Context, job *model.Job) *stageFailure {
	jobID := job.ID
	now := time.Now()
	if !w.transition(jobID, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
		j.CurrentStep = model.StepASR
		j.StartedAt = &now
	}) {
		return nil
	}
	w.hub.BroadcastProgress(jobID, model.StepASR, model.ProgressUploaded, "Uploading video to ASR service...")

	// Stage 1: transcription + translation
	asrResult, fail := w.runTranscribe(ctx, job)
	if fail != nil {
		return fail
	}
	if !w.transition(jobID, func(j *model.Job) {
		j.Segments = asrResult.Segments
		j.Transcript = asrResult.Text
	}) {
		return nil
	}
	w.hub.BroadcastProgress(jobID, model.StepASR, model.ProgressTranscribed,
		fmt.Sprintf("Transcribed %d segments", len(asrResult.Segments)))

	// Stage 2: voice-clone synthesis
	if !w.transition(jobID, func(j *model.Job) { j.CurrentStep = model.StepTTS }) {
		return nil
	}
	w.hub.BroadcastProgress(jobID, model.StepTTS, model.ProgressSynthStart, "Synthesizing speech...")

	audio, fail := w.runSynthesize(ctx, job, asrResult)
	if fail != nil {
		return fail
	}
	w.hub.BroadcastProgress(jobID, model.StepTTS, model.ProgressSynthDone,
		fmt.Sprintf("Synthesized %d KB audio", len(audio)/1024))

	// Stage 3: lip sync
	if !w.transition(jobID, func(j *model.Job) { j.CurrentStep = model.StepWav2Lip }) {
		return nil
	}
	w.hub.BroadcastProgress(jobID, model.StepWav2Lip, model.ProgressLipStart, "Starting lip synchronization...")

	outputPath, fail := w.runLipSync(ctx, job, audio)
	if fail != nil {
		return fail
	}
	w.hub.BroadcastProgress(jobID, model.StepWav2Lip, model.ProgressLipDone, "Lip sync complete")

	outputURL := w.archiveOutput(ctx, jobID, outputPath)

	done := time.Now()
	if !w.transition(jobID, func(j *model.Job) {
		j.Status = model.JobStatusCompleted
		j.CurrentStep = model.StepDone
		j.OutputPath = outputPath
		j.OutputURL = outputURL
		j.CompletedAt = &done
	}) {
		return nil
	}
	w.hub.BroadcastProgress(jobID, model.StepDone, model.ProgressComplete, "Pipeline complete")

	log.Printf("Dubbing pipeline for job %s completed", jobID)
	return nil
}

func (w *PipelineWorker) runTranscribe(ctx context.Context, job *model.Job) (*client.TranslateResult, *stageFailure) {
	f, err := os.Open(job.InputPath)
	if err != nil {
		return nil, failf(model.StepASR, "failed to open input video: %v", err)
	}
	defer f.Close()

	result, err := w.asr.TranslateVideo(ctx, job.Filename, f, true)
	if err != nil {
		return nil, failf(model.StepASR, "%v", err)
	}
	if len(result.Segments) == 0 {
		return nil, failf(model.StepASR, "no segments returned from ASR service")
	}
	for _, seg := range result.Segments {
		if err := w.validate.Struct(seg); err != nil {
			return nil, failf(model.StepASR, "ASR returned invalid segment timing: %v", err)
		}
	}
	return result, nil
}

func (w *PipelineWorker) runSynthesize(ctx context.Context, job *model.Job, asrResult *client.TranslateResult) ([]byte, *stageFailure) {
	refName, refAudio, err := w.referenceAudio(ctx, job, asrResult.ReferenceAudioPath)
	if err != nil {
		return nil, failf(model.StepTTS, "reference audio unavailable: %v", err)
	}

	audio, err := w.tts.SynthesizeSegments(ctx, asrResult.Segments, refName, refAudio)
	if err != nil {
		return nil, failf(model.StepTTS, "%v", err)
	}
	return audio, nil
}

// referenceAudio prefers the clip the ASR service saved as a side effect;
// when that path is missing or unreadable it extracts the first 30 seconds
// of the source audio track locally. The TTS stage always receives some
// valid reference audio or the stage fails explicitly.
func (w *PipelineWorker) referenceAudio(ctx context.Context, job *model.Job, refPath string) (string, []byte, error) {
	if refPath != "" {
		if data, err := os.ReadFile(refPath); err == nil {
			return filepath.Base(refPath), data, nil
		}
		log.Printf("Reference audio %s not accessible, extracting locally", refPath)
	}
	data, err := w.extractRef(ctx, job.InputPath)
	if err != nil {
		return "", nil, err
	}
	return "reference.wav", data, nil
}

func (w *PipelineWorker) runLipSync(ctx context.Context, job *model.Job, audio []byte) (string, *stageFailure) {
	f, err := os.Open(job.InputPath)
	if err != nil {
		return "", failf(model.StepWav2Lip, "failed to open input video: %v", err)
	}
	defer f.Close()

	video, err := w.lip.LipSync(ctx, job.Filename, f, audio, job.UseHD)
	if err != nil {
		return "", failf(model.StepWav2Lip, "%v", err)
	}

	outputPath := w.media.OutputPath(job.ID)
	if err := os.WriteFile(outputPath, video, 0o644); err != nil {
		return "", failf(model.StepWav2Lip, "failed to write output video: %v", err)
	}
	return outputPath, nil
}

// archiveOutput mirrors the output to object storage when configured.
// Archive failures are logged, not fatal: the local file is the result.
func (w *PipelineWorker) archiveOutput(ctx context.Context, jobID, outputPath string) string {
	if w.archive == nil {
		return ""
	}
	f, err := os.Open(outputPath)
	if err != nil {
		log.Printf("Failed to open output for archiving: %v", err)
		return ""
	}
	defer f.Close()

	url, err := w.archive.Upload(ctx, fmt.Sprintf("outputs/%s_dubbed.mp4", jobID), f, "video/mp4")
	if err != nil {
		log.Printf("Failed to archive output for job %s: %v", jobID, err)
		return ""
	}
	return url
}

// transition applies a store mutation, tolerating a record deleted by a
// concurrent DELETE. Returns false when the job is gone and the pipeline
// should stop quietly.
func (w *PipelineWorker) transition(jobID string, mutate func(*model.Job)) bool {
	if err := w.jobs.Update(jobID, mutate); err != nil {
		log.Printf("Job %s removed mid-pipeline; abandoning run", jobID)
		return false
	}
	return true
}

func (w *PipelineWorker) failJob(jobID string, fail *stageFailure) {
	log.Printf("Pipeline for job %s failed at %s: %s", jobID, fail.step, fail.message)
	msg := fail.message
	now := time.Now()
	if err := w.jobs.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusFailed
		j.CurrentStep = model.StepError
		j.Error = &msg
		j.CompletedAt = &now
	}); err != nil {
		return
	}
	w.hub.BroadcastProgress(jobID, model.StepError, model.ProgressError, "Pipeline failed: "+msg)
}
