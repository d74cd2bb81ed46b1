package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/database"
	"dispatchboard/internal/filter"
	"dispatchboard/internal/models"
	"dispatchboard/internal/services"
)

func newTaskApp(t *testing.T, tasks ...models.Task) *fiber.App {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	taskService := services.NewTaskService(db)
	groups := models.NewTaskGroups()
	for _, task := range tasks {
		groups.Add(task)
	}
	if len(tasks) > 0 {
		if _, err := taskService.SaveSnapshot(context.Background(), groups); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	registry, err := filter.NewRegistry(filepath.Join(t.TempDir(), "filter_config.json"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	h := NewTaskHandler(taskService, registry, filter.NewEngine("sunday"), "sunday")
	app := fiber.New()
	app.Get("/api/tasks", h.Grouped)
	app.Get("/api/tasks/by-date", h.ByDate)
	app.Get("/api/tasks/search", h.Search)
	app.Get("/api/engineers", h.Engineers)
	return app
}

func TestGroupedUnknownFilterIs404(t *testing.T) {
	app := newTaskApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks?filter_name=ghost", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGroupedReturnsAllBuckets(t *testing.T) {
	app := newTaskApp(t,
		models.Task{RecordID: "r1", TaskName: "Acme 修复", Assignee: "李雷", Status: "进行中", Priority: "紧急", Date: "2025-10-13", Weekday: models.Monday},
	)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks?start_date=2025-10-12&end_date=2025-10-18", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var groups map[string][]models.Task
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, bucket := range models.WeekdayBuckets {
		if _, ok := groups[bucket]; !ok {
			t.Errorf("response missing bucket %q", bucket)
		}
	}
	if len(groups[models.Monday]) != 1 {
		t.Errorf("monday holds %d tasks, want 1", len(groups[models.Monday]))
	}
}

func TestGroupedTrimsOutOfRangeAfterFilter(t *testing.T) {
	app := newTaskApp(t,
		models.Task{RecordID: "in", TaskName: "a", Assignee: "x", Status: "进行中", Priority: "p", Date: "2025-10-13", Weekday: models.Monday},
		models.Task{RecordID: "quar", TaskName: "b", Assignee: "x", Status: "进行中", Priority: "p", Date: "", Weekday: models.UnknownDate},
	)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks?start_date=2025-10-12&end_date=2025-10-18", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var groups map[string][]models.Task
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Quarantined tasks survive any date window.
	if len(groups[models.UnknownDate]) != 1 {
		t.Errorf("unknown_date holds %d tasks, want 1", len(groups[models.UnknownDate]))
	}
}

func TestGroupedActiveFilterExcludesCancelled(t *testing.T) {
	app := newTaskApp(t,
		models.Task{RecordID: "live", TaskName: "a", Assignee: "x", Status: "进行中", Priority: "p", Date: "2025-10-13", Weekday: models.Monday},
		models.Task{RecordID: "gone", TaskName: "b", Assignee: "x", Status: "已取消", Priority: "p", Date: "2025-10-13", Weekday: models.Monday},
	)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks?start_date=2025-10-12&end_date=2025-10-18", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var groups map[string][]models.Task
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(groups[models.Monday]) != 1 || groups[models.Monday][0].RecordID != "live" {
		t.Errorf("default filter should drop cancelled tasks: %+v", groups[models.Monday])
	}
}

func TestByDateRequiresParam(t *testing.T) {
	app := newTaskApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks/by-date", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchFindsAssignee(t *testing.T) {
	app := newTaskApp(t,
		models.Task{RecordID: "r1", TaskName: "Acme 修复", Assignee: "李雷", Status: "s", Priority: "p", Date: "2025-10-13", Weekday: models.Monday},
	)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tasks/search?keyword=%E6%9D%8E%E9%9B%B7", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body models.TaskListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Tasks[0].RecordID != "r1" {
		t.Errorf("search result = %+v", body)
	}
}
