package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/filter"
	"dispatchboard/internal/models"
)

// FilterHandler serves the filter registry CRUD endpoints.
type FilterHandler struct {
	registry *filter.Registry
}

// NewFilterHandler creates a new filter handler
func NewFilterHandler(registry *filter.Registry) *FilterHandler {
	return &FilterHandler{registry: registry}
}

// List serves GET /api/filters.
func (h *FilterHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"available_filters": h.registry.Names(),
		"active_filter":     h.registry.ActiveFilter(),
	})
}

// Activate serves POST /api/filters/activate?filter_name=.
func (h *FilterHandler) Activate(c *fiber.Ctx) error {
	name := c.Query("filter_name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required query parameter: filter_name",
		})
	}

	if err := h.registry.SetActive(name); err != nil {
		if errors.Is(err, filter.ErrFilterNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Filter '" + name + "' not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("📋 [FILTER] Activated filter %q", name)
	return c.JSON(fiber.Map{"message": "Successfully activated filter '" + name + "'"})
}

// Add serves POST /api/filters/add.
func (h *FilterHandler) Add(c *fiber.Ctx) error {
	var req models.FilterCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Filter name is required"})
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	logic := req.Logic
	if logic == "" {
		logic = "and"
	}

	if err := h.registry.Add(req.Name, req.Conditions, enabled, logic); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("📋 [FILTER] Added filter %q (%d conditions)", req.Name, len(req.Conditions))
	return c.JSON(fiber.Map{"message": "Successfully added filter '" + req.Name + "'"})
}

// Update serves PUT /api/filters/:name.
func (h *FilterHandler) Update(c *fiber.Ctx) error {
	name := c.Params("name")

	var req models.FilterUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.registry.Update(name, req.Conditions, req.Enabled, req.Logic); err != nil {
		if errors.Is(err, filter.ErrFilterNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Filter '" + name + "' not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Successfully updated filter '" + name + "'"})
}

// Remove serves DELETE /api/filters/:name. Removing an unknown filter
// succeeds: the end state is the same either way.
func (h *FilterHandler) Remove(c *fiber.Ctx) error {
	name := c.Params("name")

	if err := h.registry.Remove(name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Successfully removed filter '" + name + "'"})
}
