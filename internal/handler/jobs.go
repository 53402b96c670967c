package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/voxdub/api/internal/model"
	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/internal/store"
	"github.com/voxdub/api/pkg/response"
)

type JobsHandler struct {
	service *service.DubService
}

func NewJobsHandler(svc *service.DubService) *JobsHandler {
	return &JobsHandler{service: svc}
}

// List handles GET /api/jobs
func (h *JobsHandler) List(c *fiber.Ctx) error {
	return response.OK(c, model.JobListResponse{Jobs: h.service.ListJobs()})
}

// Get handles GET /api/jobs/:id
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job)
}

// Delete handles DELETE /api/jobs/:id
func (h *JobsHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if err := h.service.DeleteJob(jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, model.DeleteResponse{Message: fmt.Sprintf("Job %s deleted", jobID)})
}
