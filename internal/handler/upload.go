package handler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voxdub/api/internal/model"
	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/pkg/response"
)

const maxUploadSize = 500 * 1024 * 1024 // 500MB

type UploadHandler struct {
	service   *service.DubService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.DubService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/upload. It creates the job, schedules the
// pipeline and returns immediately with a queued acknowledgment.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 500MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	if !validVideoName(file.Filename) {
		return response.ValidationError(c, "Invalid file type. Supported: MP4, MKV, MOV, AVI, WEBM", map[string]interface{}{
			"filename": file.Filename,
		})
	}

	useHD := false
	if v := c.FormValue("use_hd"); v != "" {
		useHD = v == "true" || v == "1"
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	job, err := h.service.CreateJob(c.Context(), file.Filename, useHD, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.UploadResponse{
		JobID:  job.ID,
		Status: job.Status,
		Message: fmt.Sprintf("Video '%s' uploaded (%.1f MB). Pipeline started.",
			job.Filename, job.FileSizeMB),
	})
}

func validVideoName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mkv", ".mov", ".avi", ".webm":
		return true
	}
	return false
}
