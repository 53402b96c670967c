package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/voxdub/api/internal/config"
	"github.com/voxdub/api/internal/model"
)

// ASRClient talks to the transcription/translation service.
type ASRClient struct {
	baseClient
}

// TranslateResult is the transcription stage's output: the full translated
// text, timed segments, and optionally the path of a reference-audio clip
// the service saved to the shared volume.
type TranslateResult struct {
	JobID              string          `json:"job_id"`
	Text               string          `json:"text"`
	Segments           []model.Segment `json:"segments"`
	ReferenceAudioPath string          `json:"reference_audio_path"`
}

func NewASRClient(cfg *config.ServicesConfig) *ASRClient {
	return &ASRClient{newBaseClient("asr", cfg.ASRURL, cfg)}
}

// TranslateVideo uploads the media and asks the service to transcribe and
// translate it. saveAudio requests a reference clip of the original speaker
// as a side effect.
func (c *ASRClient) TranslateVideo(ctx context.Context, filename string, media io.Reader, saveAudio bool) (*TranslateResult, error) {
	body, err := c.postMultipart(ctx, "/translate", func(mw *multipart.Writer) error {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, media); err != nil {
			return err
		}
		return mw.WriteField("save_audio", strconv.FormatBool(saveAudio))
	})
	if err != nil {
		return nil, err
	}

	var result TranslateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ASR response: %w", err)
	}
	return &result, nil
}
