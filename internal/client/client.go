// Package client implements the HTTP clients for the three downstream
// media services. All clients are fail-fast: a transport failure or a
// non-success response surfaces as a *ServiceError and the caller does not
// retry.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/voxdub/api/internal/config"
	"github.com/voxdub/api/internal/model"
)

// Transcriber sends media to the speech-recognition/translation service.
type Transcriber interface {
	TranslateVideo(ctx context.Context, filename string, media io.Reader, saveAudio bool) (*TranslateResult, error)
}

// Synthesizer sends segments plus reference audio to the voice-clone
// synthesis service and receives one audio track spanning the timeline.
type Synthesizer interface {
	SynthesizeSegments(ctx context.Context, segments []model.Segment, refName string, refAudio []byte) ([]byte, error)
}

// LipSyncer sends video plus dubbed audio to the lip-sync service.
type LipSyncer interface {
	LipSync(ctx context.Context, videoName string, video io.Reader, audio []byte, useHD bool) ([]byte, error)
}

// HealthChecker reports a downstream service's own health payload.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (map[string]any, error)
}

// ServiceError is a typed failure from a downstream service: either the
// service rejected the request (StatusCode set, message forwarded verbatim)
// or it was unreachable (StatusCode zero).
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s service unreachable: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s service error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// baseClient carries what all three service clients share: a long-haul
// client for inference calls and a short-timeout one for health checks.
type baseClient struct {
	name         string
	baseURL      string
	httpClient   *http.Client
	healthClient *http.Client
}

func newBaseClient(name, baseURL string, cfg *config.ServicesConfig) baseClient {
	connect := time.Duration(cfg.ConnectTimeout) * time.Second
	read := time.Duration(cfg.ReadTimeout) * time.Second
	health := time.Duration(cfg.HealthTimeout) * time.Second
	return baseClient{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connect}).DialContext,
			},
		},
		healthClient: &http.Client{Timeout: health},
	}
}

// postMultipart sends a multipart form built by build and returns the raw
// response body.
func (c *baseClient) postMultipart(ctx context.Context, endpoint string, build func(*multipart.Writer) error) ([]byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := build(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Service: c.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{Service: c.name, StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, nil
}

// HealthCheck queries the service's /health endpoint with the short timeout
// and returns its payload.
func (c *baseClient) HealthCheck(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Service: c.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Service: c.name, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal health response: %w", err)
	}
	return payload, nil
}
