package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"dispatchboard/internal/database"
	"dispatchboard/internal/models"
)

// TaskService persists and queries the expanded per-day task rows.
type TaskService struct {
	db *database.DB
}

// NewTaskService creates a new task service
func NewTaskService(db *database.DB) *TaskService {
	return &TaskService{db: db}
}

// SaveSnapshot replaces the whole task table with the given groups in one
// transaction. The snapshot model keeps the table an exact mirror of the
// source: deleted and edited records disappear or move with no diffing.
func (s *TaskService) SaveSnapshot(ctx context.Context, groups models.TaskGroups) (int, error) {
	tasks := groups.Flatten()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return 0, fmt.Errorf("failed to clear tasks: %w", err)
	}

	// The UNIQUE(record_id, date) key makes re-inserting the same logical
	// row an update, so a snapshot containing duplicates cannot abort the
	// transaction halfway.
	var insert string
	if s.db.Driver() == "mysql" {
		insert = `INSERT INTO tasks
			(record_id, task_name, assignee, status, priority, application_status, date, start_date, end_date, weekday)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				task_name = VALUES(task_name), assignee = VALUES(assignee),
				status = VALUES(status), priority = VALUES(priority),
				application_status = VALUES(application_status),
				start_date = VALUES(start_date), end_date = VALUES(end_date),
				weekday = VALUES(weekday)`
	} else {
		insert = `INSERT OR REPLACE INTO tasks
			(record_id, task_name, assignee, status, priority, application_status, date, start_date, end_date, weekday)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, task := range tasks {
		if _, err := stmt.ExecContext(ctx,
			task.RecordID, task.TaskName, task.Assignee, task.Status,
			task.Priority, task.ApplicationStatus, task.Date,
			task.StartDate, task.EndDate, task.Weekday,
		); err != nil {
			return 0, fmt.Errorf("failed to insert task %s/%s: %w", task.RecordID, task.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Printf("💾 [TASKS] Snapshot replaced: %d tasks", len(tasks))
	return len(tasks), nil
}

const taskColumns = `record_id, task_name, assignee, status, priority, application_status, date, start_date, end_date, weekday`

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(
			&t.RecordID, &t.TaskName, &t.Assignee, &t.Status, &t.Priority,
			&t.ApplicationStatus, &t.Date, &t.StartDate, &t.EndDate, &t.Weekday,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// LoadRange returns tasks whose date falls in [first, last], plus every
// quarantined unknown_date task regardless of range. Unknown-date tasks
// carry no usable date, so a date window must never hide them.
func (s *TaskService) LoadRange(ctx context.Context, first, last string) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks
		WHERE (date >= ? AND date <= ?) OR weekday = ?
		ORDER BY date, record_id`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, first, last, models.UnknownDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ByAssignee returns an engineer's tasks in a date range, ordered by day.
func (s *TaskService) ByAssignee(ctx context.Context, assignee, first, last string) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks
		WHERE assignee = ? AND date >= ? AND date <= ?
		ORDER BY date, record_id`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, assignee, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by assignee: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ByDate returns a single day's tasks grouped by engineer, most urgent
// first within each engineer.
func (s *TaskService) ByDate(ctx context.Context, date string) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE date = ? ORDER BY assignee, priority DESC`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by date: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Search returns up to limit tasks whose name or assignee contains the
// keyword.
func (s *TaskService) Search(ctx context.Context, keyword string, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks
		WHERE task_name LIKE ? OR assignee LIKE ?
		ORDER BY date, record_id LIMIT ?`, taskColumns)

	pattern := "%" + keyword + "%"
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Assignees lists the distinct engineers with at least one task.
func (s *TaskService) Assignees(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT assignee FROM tasks WHERE assignee != '' ORDER BY assignee`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignees: %w", err)
	}
	defer rows.Close()

	var assignees []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		assignees = append(assignees, a)
	}
	return assignees, rows.Err()
}

// Stats aggregates per-engineer workload counts over a date range.
func (s *TaskService) Stats(ctx context.Context, first, last string) ([]models.EngineerStats, error) {
	query := `SELECT assignee,
			COUNT(*) AS total,
			SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END)
		FROM tasks
		WHERE date >= ? AND date <= ?
		GROUP BY assignee
		ORDER BY total DESC, assignee`

	rows, err := s.db.QueryContext(ctx, query,
		models.PriorityVeryUrgent, models.PriorityUrgent, models.PriorityImportant,
		first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []models.EngineerStats
	for rows.Next() {
		var st models.EngineerStats
		if err := rows.Scan(&st.Engineer, &st.TotalTasks, &st.VeryUrgent, &st.Urgent, &st.Important); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// PriorityCounts tallies tasks per priority label over a date range.
func (s *TaskService) PriorityCounts(ctx context.Context, first, last string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tasks WHERE date >= ? AND date <= ? GROUP BY priority`,
		first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to query priority counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var priority string
		var n int
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		counts[priority] = n
	}
	return counts, rows.Err()
}

// ByRecordID returns every per-day task expanded from one source record.
func (s *TaskService) ByRecordID(ctx context.Context, recordID string) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE record_id = ? ORDER BY date`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by record: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Count returns the number of persisted tasks.
func (s *TaskService) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}
