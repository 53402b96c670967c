package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/voxdub/api/internal/config"
	"github.com/voxdub/api/internal/model"
)

// TTSClient talks to the voice-clone synthesis service.
type TTSClient struct {
	baseClient
}

func NewTTSClient(cfg *config.ServicesConfig) *TTSClient {
	return &TTSClient{newBaseClient("tts", cfg.TTSURL, cfg)}
}

// SynthesizeSegments sends the timed segments plus a reference-audio clip
// and returns one WAV payload spanning the full timeline, with each
// utterance placed at its original timestamp.
func (c *TTSClient) SynthesizeSegments(ctx context.Context, segments []model.Segment, refName string, refAudio []byte) ([]byte, error) {
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segments: %w", err)
	}

	return c.postMultipart(ctx, "/synthesize_segments", func(mw *multipart.Writer) error {
		part, err := mw.CreateFormFile("reference_audio", refName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, bytes.NewReader(refAudio)); err != nil {
			return err
		}
		return mw.WriteField("segments", string(segJSON))
	})
}
