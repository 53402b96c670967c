package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/pkg/response"
)

type HealthHandler struct {
	service *service.HealthService
}

func NewHealthHandler(svc *service.HealthService) *HealthHandler {
	return &HealthHandler{service: svc}
}

// Health handles GET /api/health. A degraded report still returns 200; the
// body carries the per-service detail.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, h.service.Aggregate(c.Context()))
}
