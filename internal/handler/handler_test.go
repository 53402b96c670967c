package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/voxdub/api/internal/media"
	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/internal/store"
)

// fakeEnqueuer records pipeline tasks instead of touching redis.
type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type testApp struct {
	app      *fiber.App
	jobs     *store.JobStore
	media    *media.Store
	enqueuer *fakeEnqueuer
	svc      *service.DubService
}

// setupApp builds the gateway routes the way main.go does, with an
// in-memory queue fake so no redis is required.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	jobs := store.New()
	mediaStore, err := media.NewStore(
		filepath.Join(t.TempDir(), "uploads"),
		filepath.Join(t.TempDir(), "outputs"),
	)
	if err != nil {
		t.Fatalf("media store: %v", err)
	}

	enqueuer := &fakeEnqueuer{}
	dubService := service.NewDubService(jobs, mediaStore, enqueuer)

	uploadHandler := NewUploadHandler(dubService, validator.New())
	jobsHandler := NewJobsHandler(dubService)
	downloadHandler := NewDownloadHandler(dubService)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/upload", uploadHandler.Upload)
	api.Get("/jobs", jobsHandler.List)
	api.Get("/jobs/:id", jobsHandler.Get)
	api.Delete("/jobs/:id", jobsHandler.Delete)
	api.Get("/download/:id", downloadHandler.Download)
	api.Get("/preview/:id", downloadHandler.Preview)

	return &testApp{app: app, jobs: jobs, media: mediaStore, enqueuer: enqueuer, svc: dubService}
}

func multipartUpload(t *testing.T, filename, useHD string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake video bytes"))
	if useHD != "" {
		mw.WriteField("use_hd", useHD)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func parseJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
	return out
}

func TestUploadCreatesQueuedJob(t *testing.T) {
	ta := setupApp(t)

	buf, contentType := multipartUpload(t, "clip.mp4", "true")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := parseJSON(t, resp)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatal("expected jobId in response")
	}
	if body["status"] != "queued" {
		t.Errorf("status = %v", body["status"])
	}

	job, err := ta.jobs.Get(jobID)
	if err != nil {
		t.Fatalf("job not in store: %v", err)
	}
	if !job.UseHD {
		t.Error("use_hd flag not captured")
	}
	if job.InputPath == "" {
		t.Error("input path not recorded")
	}
	if len(ta.enqueuer.tasks) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(ta.enqueuer.tasks))
	}
	if ta.enqueuer.tasks[0].Type() != service.TaskTypePipeline {
		t.Errorf("task type = %s", ta.enqueuer.tasks[0].Type())
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	ta := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUploadRejectsNonVideo(t *testing.T) {
	ta := setupApp(t)

	buf, contentType := multipartUpload(t, "notes.txt", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if len(ta.enqueuer.tasks) != 0 {
		t.Error("task enqueued for rejected upload")
	}
}

func TestListAndGetJobs(t *testing.T) {
	ta := setupApp(t)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := ta.svc.CreateJob(context.Background(), fmt.Sprintf("clip_%d.mp4", i), false, strings.NewReader("x"))
		if err != nil {
			t.Fatalf("create job: %v", err)
		}
		ids = append(ids, job.ID)
	}

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := parseJSON(t, resp)
	jobs, _ := body["jobs"].([]any)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	first, _ := jobs[0].(map[string]any)
	if first["id"] != ids[0] {
		t.Errorf("list order: got %v, want %s first", first["id"], ids[0])
	}

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+ids[1], nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	job := parseJSON(t, resp)
	if job["id"] != ids[1] {
		t.Errorf("id = %v", job["id"])
	}

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/unknown1", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d for unknown job", resp.StatusCode)
	}
}

func TestDeleteJob(t *testing.T) {
	ta := setupApp(t)

	job, err := ta.svc.CreateJob(context.Background(), "clip.mp4", false, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// Record gone from list and get.
	if _, err := ta.jobs.Get(job.ID); err != store.ErrNotFound {
		t.Errorf("expected record removed, got %v", err)
	}

	// Second delete reports not found.
	resp, err = ta.app.Test(httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
}

func TestDownloadNotReady(t *testing.T) {
	ta := setupApp(t)

	job, err := ta.svc.CreateJob(context.Background(), "clip.mp4", false, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/download/"+job.ID, nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := parseJSON(t, resp)
	errDetail, _ := body["error"].(map[string]any)
	if errDetail["code"] != "JOB_NOT_READY" {
		t.Errorf("code = %v", errDetail["code"])
	}
	msg, _ := errDetail["message"].(string)
	if !strings.Contains(msg, "queued") {
		t.Errorf("message should name current status, got %q", msg)
	}
}

func TestDownloadUnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/download/nope1234", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestPreviewStreamsInput(t *testing.T) {
	ta := setupApp(t)

	job, err := ta.svc.CreateJob(context.Background(), "clip.mp4", false, strings.NewReader("original video"))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/preview/"+job.ID, nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "original video" {
		t.Errorf("body = %q", body)
	}
}
