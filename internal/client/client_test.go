package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxdub/api/internal/config"
	"github.com/voxdub/api/internal/model"
)

func testServicesConfig(url string) *config.ServicesConfig {
	return &config.ServicesConfig{
		ASRURL:         url,
		TTSURL:         url,
		Wav2LipURL:     url,
		ConnectTimeout: 2,
		ReadTimeout:    5,
		HealthTimeout:  2,
	}
}

func TestASRClientTranslateVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("save_audio"); got != "true" {
			t.Errorf("save_audio = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "clip.mp4" {
			t.Errorf("filename = %q", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "video-bytes" {
			t.Errorf("file body = %q", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"job_id": "abc12345",
			"text":   "hello world",
			"segments": []map[string]any{
				{"start": 0.0, "end": 2.5, "text": "hello"},
				{"start": 2.5, "end": 4.0, "text": "world"},
			},
			"reference_audio_path": "/shared/ref.wav",
		})
	}))
	defer srv.Close()

	c := NewASRClient(testServicesConfig(srv.URL))
	result, err := c.TranslateVideo(context.Background(), "clip.mp4", strings.NewReader("video-bytes"), true)
	if err != nil {
		t.Fatalf("TranslateVideo: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("text = %q", result.Text)
	}
	if len(result.Segments) != 2 || result.Segments[1].Text != "world" {
		t.Errorf("segments = %+v", result.Segments)
	}
	if result.ReferenceAudioPath != "/shared/ref.wav" {
		t.Errorf("reference path = %q", result.ReferenceAudioPath)
	}
}

func TestTTSClientSynthesizeSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize_segments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		var segments []model.Segment
		if err := json.Unmarshal([]byte(r.FormValue("segments")), &segments); err != nil {
			t.Fatalf("segments field: %v", err)
		}
		if len(segments) != 2 || segments[0].Text != "hello" {
			t.Errorf("segments = %+v", segments)
		}

		file, header, err := r.FormFile("reference_audio")
		if err != nil {
			t.Fatalf("reference_audio: %v", err)
		}
		defer file.Close()
		if header.Filename != "ref.wav" {
			t.Errorf("ref filename = %q", header.Filename)
		}

		w.Write([]byte("wav-payload"))
	}))
	defer srv.Close()

	c := NewTTSClient(testServicesConfig(srv.URL))
	audio, err := c.SynthesizeSegments(context.Background(), []model.Segment{
		{Start: 0, End: 2.5, Text: "hello"},
		{Start: 2.5, End: 4, Text: "world"},
	}, "ref.wav", []byte("reference"))
	if err != nil {
		t.Fatalf("SynthesizeSegments: %v", err)
	}
	if string(audio) != "wav-payload" {
		t.Errorf("audio = %q", audio)
	}
}

func TestWav2LipClientLipSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lipsync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("use_hd"); got != "true" {
			t.Errorf("use_hd = %q", got)
		}
		if got := r.FormValue("resize_factor"); got != "1" {
			t.Errorf("resize_factor = %q", got)
		}
		if got := r.FormValue("pads"); got != "0 10 0 0" {
			t.Errorf("pads = %q", got)
		}
		if _, _, err := r.FormFile("video"); err != nil {
			t.Errorf("video part: %v", err)
		}
		audio, _, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("audio part: %v", err)
		}
		defer audio.Close()
		body, _ := io.ReadAll(audio)
		if string(body) != "dubbed" {
			t.Errorf("audio body = %q", body)
		}

		w.Write([]byte("mp4-payload"))
	}))
	defer srv.Close()

	c := NewWav2LipClient(testServicesConfig(srv.URL))
	video, err := c.LipSync(context.Background(), "clip.mp4", strings.NewReader("original"), []byte("dubbed"), true)
	if err != nil {
		t.Fatalf("LipSync: %v", err)
	}
	if string(video) != "mp4-payload" {
		t.Errorf("video = %q", video)
	}
}

func TestNonSuccessResponseIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewASRClient(testServicesConfig(srv.URL))
	_, err := c.TranslateVideo(context.Background(), "clip.mp4", strings.NewReader("x"), false)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if svcErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", svcErr.StatusCode)
	}
	if !strings.Contains(svcErr.Message, "model not loaded") {
		t.Errorf("message = %q", svcErr.Message)
	}
	if svcErr.Service != "asr" {
		t.Errorf("service = %q", svcErr.Service)
	}
}

func TestUnreachableServiceIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // reject all connections

	c := NewTTSClient(testServicesConfig(srv.URL))
	_, err := c.SynthesizeSegments(context.Background(), nil, "ref.wav", []byte("x"))

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if svcErr.StatusCode != 0 {
		t.Errorf("expected transport failure (status 0), got %d", svcErr.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model": "base", "device": "cpu"})
	}))
	defer srv.Close()

	c := NewASRClient(testServicesConfig(srv.URL))
	payload, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if payload["model"] != "base" {
		t.Errorf("payload = %v", payload)
	}
}
