// Package normalize turns raw bitable records into day-bucketed tasks.
// It is a pure transformation: malformed input degrades to sentinel values
// and never produces an error. A record that contributes no usable date is
// quarantined in the unknown_date bucket so operators can audit it.
package normalize

import (
	"strings"
	"time"

	"dispatchboard/internal/dates"
	"dispatchboard/internal/models"
)

// Normalizer expands raw records into canonical per-day tasks.
type Normalizer struct {
	fields models.FieldMapping
}

// New returns a normalizer reading the given bitable columns.
func New(fields models.FieldMapping) *Normalizer {
	return &Normalizer{fields: fields}
}

// Normalize transforms records into weekday-bucketed tasks. Within a bucket,
// output order follows input record order; a multi-day expansion emits its
// days in ascending order.
func (n *Normalizer) Normalize(records []models.RawRecord) models.TaskGroups {
	groups := models.NewTaskGroups()
	for _, rec := range records {
		n.normalizeRecord(rec, groups)
	}
	return groups
}

func (n *Normalizer) normalizeRecord(rec models.RawRecord, groups models.TaskGroups) {
	fields := rec.Fields

	customer := stringField(fields, n.fields.CustomerName)
	content := stringField(fields, n.fields.TaskContent)
	taskName := strings.TrimSpace(customer + " " + content)

	assignee := extractAssignee(fields[n.fields.Assignee])

	priority := stringField(fields, n.fields.Priority)
	if priority == "" {
		priority = models.UnknownPriority
	}
	applicationStatus := stringField(fields, n.fields.ApplicationStatus)

	// The approval workflow wins over priority for the display status.
	var status string
	switch applicationStatus {
	case models.StatusInReview:
		status = models.DisplayInProgress
	case models.StatusApproved:
		status = models.DisplayEnded
	default:
		status = priority
	}

	base := models.Task{
		RecordID:          rec.RecordID,
		TaskName:          taskName,
		Assignee:          assignee,
		Status:            status,
		Priority:          priority,
		ApplicationStatus: applicationStatus,
	}

	startMS, startOK := epochMillis(fields[n.fields.StartDate])
	endMS, endOK := epochMillis(fields[n.fields.EndDate])

	// Partial date information is unusable for day-bucketing: if either
	// bound is absent (or malformed, which is treated the same), emit a
	// single unexpandable task carrying whatever bound did resolve.
	if !startOK || !endOK {
		task := base
		if startOK {
			task.StartDate = dates.TimestampToDate(startMS)
		}
		if endOK {
			task.EndDate = dates.TimestampToDate(endMS)
		}
		task.Weekday = models.UnknownDate
		groups.Add(task)
		return
	}

	startStr := dates.TimestampToDate(startMS)
	endStr := dates.TimestampToDate(endMS)

	base.StartDate = startStr
	base.EndDate = endStr

	days := expandDates(startStr, endStr)
	if len(days) == 0 {
		// Inverted range or unconvertible bounds: quarantine, don't drop.
		task := base
		task.Weekday = models.UnknownDate
		groups.Add(task)
		return
	}

	for _, day := range days {
		task := base
		task.Date = day
		task.Weekday = dates.ClassifyDateString(day)
		groups.Add(task)
	}
}

// expandDates enumerates the calendar days a task covers. When both bounds
// parse, every day from start to end inclusive is returned; a bound that
// fails to parse degrades to the single remaining date.
func expandDates(startStr, endStr string) []string {
	if startStr != "" && endStr != "" {
		start, errS := time.Parse(dates.Layout, startStr)
		end, errE := time.Parse(dates.Layout, endStr)
		if errS != nil || errE != nil {
			if startStr != "" {
				return []string{startStr}
			}
			return []string{endStr}
		}
		return dates.EnumerateDays(start, end)
	}
	if startStr != "" {
		return []string{startStr}
	}
	if endStr != "" {
		return []string{endStr}
	}
	return nil
}

// stringField reads a field as a string, returning "" for absent or
// non-string values.
func stringField(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}

// extractAssignee joins the names of a bitable user list with ", ". A single
// user object yields its name; anything else falls back to the sentinel.
func extractAssignee(v any) string {
	switch users := v.(type) {
	case []any:
		var names []string
		for _, u := range users {
			if m, ok := u.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	case map[string]any:
		if name, ok := users["name"].(string); ok {
			return name
		}
	}
	return models.UnknownAssignee
}

// epochMillis reads a bitable timestamp cell. JSON numbers arrive as
// float64; integer types cover records round-tripped through the archive.
// Anything non-numeric is treated as absent, never as an error.
func epochMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
