package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/dates"
	"dispatchboard/internal/filter"
	"dispatchboard/internal/models"
	"dispatchboard/internal/services"
)

// TaskHandler serves the task query endpoints.
type TaskHandler struct {
	tasks     *services.TaskService
	registry  *filter.Registry
	engine    *filter.Engine
	weekStart string
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *services.TaskService, registry *filter.Registry, engine *filter.Engine, weekStart string) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		registry:  registry,
		engine:    engine,
		weekStart: weekStart,
	}
}

// weekOrRange returns the requested range, defaulting to the current week
// when either bound is missing.
func (h *TaskHandler) weekOrRange(start, end string) (string, string) {
	if start == "" || end == "" {
		return dates.WeekRange(time.Now(), h.weekStart)
	}
	return start, end
}

// Grouped serves GET /api/tasks: the weekday-bucketed view the board
// renders. Tasks are loaded for the range, passed through the requested (or
// active) filter, then re-bucketed with a final range trim so a filter
// cannot smuggle out-of-range rows back in.
func (h *TaskHandler) Grouped(c *fiber.Ctx) error {
	start, end := h.weekOrRange(c.Query("start_date"), c.Query("end_date"))
	filterName := c.Query("filter_name")

	def, resolvedName, err := h.registry.Resolve(filterName)
	if err != nil {
		if errors.Is(err, filter.ErrFilterNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Filter '" + filterName + "' not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	tasks, err := h.tasks.LoadRange(c.Context(), start, end)
	if err != nil {
		log.Printf("❌ [TASKS] Failed to load tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	filtered := h.engine.Apply(tasks, def)

	groups := models.NewTaskGroups()
	for _, task := range filtered {
		// Unknown-date tasks carry no date and always survive the trim.
		if task.Date != "" && (task.Date < start || task.Date > end) {
			continue
		}
		groups.Add(task)
	}

	log.Printf("📋 [TASKS] Served %d/%d tasks for %s..%s (filter %q)",
		groups.Total(), len(tasks), start, end, resolvedName)
	return c.JSON(groups)
}

// ByEngineer serves GET /api/tasks/by-engineer.
func (h *TaskHandler) ByEngineer(c *fiber.Ctx) error {
	engineer := c.Query("engineer")
	if engineer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required query parameter: engineer",
		})
	}
	start, end := h.weekOrRange(c.Query("start_date"), c.Query("end_date"))

	tasks, err := h.tasks.ByAssignee(c.Context(), engineer, start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(models.TaskListResponse{Total: len(tasks), Tasks: tasks})
}

// ByDate serves GET /api/tasks/by-date.
func (h *TaskHandler) ByDate(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required query parameter: date",
		})
	}

	tasks, err := h.tasks.ByDate(c.Context(), date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(models.TaskListResponse{Total: len(tasks), Tasks: tasks})
}

// Stats serves GET /api/tasks/stats.
func (h *TaskHandler) Stats(c *fiber.Ctx) error {
	start, end := h.weekOrRange(c.Query("start_date"), c.Query("end_date"))

	byEngineer, err := h.tasks.Stats(c.Context(), start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if byEngineer == nil {
		byEngineer = []models.EngineerStats{}
	}

	byPriority, err := h.tasks.PriorityCounts(c.Context(), start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(models.TaskStats{
		DateRange:  map[string]string{"start": start, "end": end},
		ByEngineer: byEngineer,
		ByPriority: byPriority,
	})
}

// Search serves GET /api/tasks/search.
func (h *TaskHandler) Search(c *fiber.Ctx) error {
	keyword := c.Query("keyword")
	if keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required query parameter: keyword",
		})
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	tasks, err := h.tasks.Search(c.Context(), keyword, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(models.TaskListResponse{Total: len(tasks), Tasks: tasks})
}

// Engineers serves GET /api/engineers.
func (h *TaskHandler) Engineers(c *fiber.Ctx) error {
	engineers, err := h.tasks.Assignees(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if engineers == nil {
		engineers = []string{}
	}
	return c.JSON(fiber.Map{"total": len(engineers), "engineers": engineers})
}
