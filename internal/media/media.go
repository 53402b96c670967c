// Package media owns the local files behind a job's input and output
// handles, and the ffmpeg fallback for reference-audio extraction.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Store places uploads and pipeline outputs on local disk.
type Store struct {
	uploadDir string
	outputDir string
}

func NewStore(uploadDir, outputDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// SaveUpload writes the uploaded media under the job's id and returns the
// path and the number of bytes written.
func (s *Store) SaveUpload(jobID, filename string, r io.Reader) (string, int64, error) {
	suffix := filepath.Ext(filename)
	if suffix == "" {
		suffix = ".mp4"
	}
	path := filepath.Join(s.uploadDir, fmt.Sprintf("%s_input%s", jobID, suffix))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}
	return path, n, nil
}

// OutputPath returns where the job's dubbed video will be written.
func (s *Store) OutputPath(jobID string) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_dubbed.mp4", jobID))
}

// Remove deletes media files best-effort; missing files are not an error.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove %s: %v", p, err)
		}
	}
}

// ExtractReferenceAudio pulls the first 30 seconds of the video's audio
// track as mono 22050 Hz WAV via ffmpeg. Used when the transcription stage
// did not leave a usable reference clip.
func ExtractReferenceAudio(ctx context.Context, videoPath string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "reference_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", videoPath,
		"-t", "30", "-vn", "-ar", "22050", "-ac", "1", tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg extraction failed: %w: %s", err, string(out))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted audio: %w", err)
	}
	return data, nil
}
