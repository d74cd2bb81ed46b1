package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/services"
)

// SyncHandler serves the manual sync trigger.
type SyncHandler struct {
	sync *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync *services.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Trigger serves POST /api/sync. An empty upstream fetch is reported as a
// non-success without failing the request: the caller asked for a sync and
// got an answer, just not new data.
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	log.Println("🔄 [SYNC] Manual sync triggered via API")

	result, err := h.sync.Run(c.Context())
	switch {
	case errors.Is(err, services.ErrNoRecords):
		return c.JSON(fiber.Map{
			"success":        false,
			"message":        "No data fetched from source",
			"records_synced": 0,
		})
	case errors.Is(err, services.ErrSyncInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "A sync is already in progress",
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"message":        "Data synced successfully",
		"run_id":         result.RunID,
		"records_synced": result.TasksPersisted,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
