// Package dates holds the calendar logic shared by the normalizer, the
// filter engine, and the query handlers. Both the default query range and
// the this_week operator go through WeekRange so the two can never disagree
// on week boundaries.
package dates

import (
	"time"

	"dispatchboard/internal/models"
)

// Layout is the canonical date format used throughout the system.
const Layout = "2006-01-02"

// Week-start conventions accepted by WeekRange.
const (
	WeekStartSunday = "sunday"
	WeekStartMonday = "monday"
)

// Classify maps a date to its weekday bucket. Saturday and Sunday collapse
// into the weekend bucket.
func Classify(t time.Time) string {
	switch t.Weekday() {
	case time.Monday:
		return models.Monday
	case time.Tuesday:
		return models.Tuesday
	case time.Wednesday:
		return models.Wednesday
	case time.Thursday:
		return models.Thursday
	case time.Friday:
		return models.Friday
	default:
		return models.Weekend
	}
}

// ClassifyDateString classifies a YYYY-MM-DD string. Anything unparseable
// maps to unknown_date; this function never fails.
func ClassifyDateString(s string) string {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return models.UnknownDate
	}
	return Classify(t)
}

// TimestampToDate converts a millisecond epoch timestamp to a YYYY-MM-DD
// string in the local calendar, matching how the bitable source renders
// date cells.
func TimestampToDate(ms int64) string {
	return time.UnixMilli(ms).Format(Layout)
}

// WeekRange returns the first and last day (inclusive, 7 days apart) of the
// week containing ref, as YYYY-MM-DD strings. weekStart selects the
// convention; anything other than "monday" is treated as Sunday-start.
func WeekRange(ref time.Time, weekStart string) (string, string) {
	var offset int
	if weekStart == WeekStartMonday {
		offset = (int(ref.Weekday()) + 6) % 7
	} else {
		offset = int(ref.Weekday())
	}
	first := ref.AddDate(0, 0, -offset)
	last := first.AddDate(0, 0, 6)
	return first.Format(Layout), last.Format(Layout)
}

// MonthRange returns the first and last day of the month containing ref.
func MonthRange(ref time.Time) (string, string) {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format(Layout), last.Format(Layout)
}

// EnumerateDays steps from start to end inclusive, one calendar day at a
// time, and returns each day as YYYY-MM-DD. Calendar stepping (AddDate)
// rather than duration arithmetic keeps the enumeration immune to DST
// offsets. Returns nil when start is after end.
func EnumerateDays(start, end time.Time) []string {
	var days []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur.Format(Layout))
	}
	return days
}
