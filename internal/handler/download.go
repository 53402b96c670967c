package handler

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/voxdub/api/internal/model"
	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/internal/store"
	"github.com/voxdub/api/pkg/response"
)

type DownloadHandler struct {
	service *service.DubService
}

func NewDownloadHandler(svc *service.DubService) *DownloadHandler {
	return &DownloadHandler{service: svc}
}

// Download handles GET /api/download/:id. It serves the dubbed output, only once the
// job completed.
func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	if job.Status != model.JobStatusCompleted {
		return response.NotReady(c, fmt.Sprintf("Job is %s, not yet completed", job.Status))
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		return response.NotFound(c, "Output file not found")
	}

	c.Set(fiber.HeaderContentType, "video/mp4")
	return c.Download(job.OutputPath, fmt.Sprintf("dubbed_%s.mp4", job.ID))
}

// Preview handles GET /api/preview/:id. It streams the original input media.
func (h *DownloadHandler) Preview(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	if _, err := os.Stat(job.InputPath); err != nil {
		return response.NotFound(c, "Input file not found")
	}

	c.Set(fiber.HeaderContentType, "video/mp4")
	return c.SendFile(job.InputPath)
}
