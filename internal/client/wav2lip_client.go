package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/voxdub/api/internal/config"
)

// Wav2LipClient talks to the lip-sync service.
type Wav2LipClient struct {
	baseClient
}

func NewWav2LipClient(cfg *config.ServicesConfig) *Wav2LipClient {
	return &Wav2LipClient{newBaseClient("wav2lip", cfg.Wav2LipURL, cfg)}
}

// LipSync sends the original video and the dubbed audio track and returns
// the lip-synced output video. useHD selects the GAN checkpoint.
func (c *Wav2LipClient) LipSync(ctx context.Context, videoName string, video io.Reader, audio []byte, useHD bool) ([]byte, error) {
	return c.postMultipart(ctx, "/lipsync", func(mw *multipart.Writer) error {
		vp, err := mw.CreateFormFile("video", videoName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(vp, video); err != nil {
			return err
		}
		ap, err := mw.CreateFormFile("audio", "dubbed_audio.wav")
		if err != nil {
			return err
		}
		if _, err := io.Copy(ap, bytes.NewReader(audio)); err != nil {
			return err
		}
		if err := mw.WriteField("use_hd", strconv.FormatBool(useHD)); err != nil {
			return err
		}
		if err := mw.WriteField("resize_factor", "1"); err != nil {
			return err
		}
		return mw.WriteField("pads", "0 10 0 0")
	})
}
