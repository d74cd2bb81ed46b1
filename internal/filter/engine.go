// Package filter implements the rule engine that gates query results and
// the durable registry of named filter definitions.
package filter

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"dispatchboard/internal/dates"
	"dispatchboard/internal/models"
)

// Engine evaluates filter definitions against tasks. Filtering is advisory:
// a missing or disabled definition, an unknown operator, or unparseable data
// all fail open rather than hiding tasks.
type Engine struct {
	weekStart string
	now       func() time.Time
}

// NewEngine returns an engine using the given week-start convention for the
// this_week operator.
func NewEngine(weekStart string) *Engine {
	return &Engine{weekStart: weekStart, now: time.Now}
}

// SetNow overrides the clock. Tests only.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Apply returns the order-preserving subsequence of tasks matching def.
// A nil or disabled definition passes everything through unchanged.
func (e *Engine) Apply(tasks []models.Task, def *models.FilterDefinition) []models.Task {
	if def == nil || !def.Enabled {
		return tasks
	}

	out := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if e.matches(task, def.Conditions, def.Logic) {
			out = append(out, task)
		}
	}
	return out
}

// matches combines condition results. An empty condition list matches
// everything; unrecognized logic defaults to AND.
func (e *Engine) matches(task models.Task, conditions []models.Condition, logic string) bool {
	if len(conditions) == 0 {
		return true
	}

	if logic == "or" {
		for _, cond := range conditions {
			if e.evaluate(task, cond) {
				return true
			}
		}
		return false
	}

	for _, cond := range conditions {
		if !e.evaluate(task, cond) {
			return false
		}
	}
	return true
}

func (e *Engine) evaluate(task models.Task, cond models.Condition) bool {
	fieldValue, ok := task.FieldValue(cond.Field)

	// A null operand only satisfies the absence test; it never equals,
	// contains, or compares against anything.
	if !ok {
		return cond.Operator == "is_empty"
	}

	switch cond.Operator {
	case "equals":
		return reflect.DeepEqual(fieldValue, cond.Value)
	case "not_equals":
		return !reflect.DeepEqual(fieldValue, cond.Value)
	case "contains":
		return stringContains(fieldValue, cond.Value)
	case "not_contains":
		return !stringContains(fieldValue, cond.Value)
	case "in":
		list, isList := cond.Value.([]any)
		return isList && member(fieldValue, list)
	case "not_in":
		// A non-list value fails open here: everything passes.
		list, isList := cond.Value.([]any)
		return !isList || !member(fieldValue, list)
	case "greater_than":
		a, aok := coerceFloat(fieldValue)
		b, bok := coerceFloat(cond.Value)
		return aok && bok && a > b
	case "less_than":
		a, aok := coerceFloat(fieldValue)
		b, bok := coerceFloat(cond.Value)
		return aok && bok && a < b
	case "not_empty":
		return stringify(fieldValue) != ""
	case "is_empty":
		return stringify(fieldValue) == ""
	case "this_week":
		return e.inCurrentWeek(stringify(fieldValue))
	default:
		return false
	}
}

// inCurrentWeek reports whether a date-shaped string falls inside the week
// containing now. Accepts YYYY-MM-DD, 13-digit epoch milliseconds, and
// 10-digit epoch seconds; anything else is simply not in the week.
func (e *Engine) inCurrentWeek(s string) bool {
	if s == "" {
		return false
	}

	var day string
	switch {
	case allDigits(s) && len(s) == 13:
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		day = time.UnixMilli(ms).Format(dates.Layout)
	case allDigits(s) && len(s) == 10:
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		day = time.Unix(sec, 0).Format(dates.Layout)
	default:
		if _, err := time.Parse(dates.Layout, s); err != nil {
			return false
		}
		day = s
	}

	first, last := dates.WeekRange(e.now(), e.weekStart)
	return first <= day && day <= last
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringContains(haystack, needle any) bool {
	return strings.Contains(stringify(haystack), stringify(needle))
}

func member(v any, list []any) bool {
	for _, item := range list {
		if reflect.DeepEqual(v, item) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// coerceFloat best-effort converts either operand of a numeric comparison.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
