package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	tasks *services.TaskService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tasks *services.TaskService) *HealthHandler {
	return &HealthHandler{tasks: tasks}
}

// Handle responds with server health status. A failing database probe makes
// the endpoint report unhealthy so load balancers stop routing here.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	count, err := h.tasks.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":     "healthy",
		"database":   "connected",
		"task_count": count,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
