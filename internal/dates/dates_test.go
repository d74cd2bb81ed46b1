package dates

import (
	"testing"
	"time"

	"dispatchboard/internal/models"
)

func TestClassifyAllWeekdays(t *testing.T) {
	// 2025-10-13 is a Monday.
	tests := []struct {
		date string
		want string
	}{
		{"2025-10-13", models.Monday},
		{"2025-10-14", models.Tuesday},
		{"2025-10-15", models.Wednesday},
		{"2025-10-16", models.Thursday},
		{"2025-10-17", models.Friday},
		{"2025-10-18", models.Weekend},
		{"2025-10-19", models.Weekend},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := ClassifyDateString(tt.date); got != tt.want {
				t.Errorf("ClassifyDateString(%s) = %s, want %s", tt.date, got, tt.want)
			}
		})
	}
}

func TestClassifyDateStringUnparseable(t *testing.T) {
	for _, s := range []string{"", "not-a-date", "2025/10/13", "2025-13-45"} {
		if got := ClassifyDateString(s); got != models.UnknownDate {
			t.Errorf("ClassifyDateString(%q) = %s, want %s", s, got, models.UnknownDate)
		}
	}
}

func TestWeekRangeSundayStart(t *testing.T) {
	// Reference 2025-10-15 (Wednesday): Sunday-start week is Oct 12..18.
	ref := time.Date(2025, 10, 15, 12, 0, 0, 0, time.Local)
	first, last := WeekRange(ref, WeekStartSunday)
	if first != "2025-10-12" || last != "2025-10-18" {
		t.Errorf("WeekRange(sunday) = (%s, %s), want (2025-10-12, 2025-10-18)", first, last)
	}
}

func TestWeekRangeMondayStart(t *testing.T) {
	ref := time.Date(2025, 10, 15, 12, 0, 0, 0, time.Local)
	first, last := WeekRange(ref, WeekStartMonday)
	if first != "2025-10-13" || last != "2025-10-19" {
		t.Errorf("WeekRange(monday) = (%s, %s), want (2025-10-13, 2025-10-19)", first, last)
	}
}

func TestWeekRangeOnBoundary(t *testing.T) {
	// A Sunday reference starts its own Sunday-start week.
	ref := time.Date(2025, 10, 12, 0, 0, 0, 0, time.Local)
	first, last := WeekRange(ref, WeekStartSunday)
	if first != "2025-10-12" || last != "2025-10-18" {
		t.Errorf("WeekRange on Sunday = (%s, %s), want (2025-10-12, 2025-10-18)", first, last)
	}

	// A Monday reference starts its own Monday-start week.
	ref = time.Date(2025, 10, 13, 0, 0, 0, 0, time.Local)
	first, last = WeekRange(ref, WeekStartMonday)
	if first != "2025-10-13" || last != "2025-10-19" {
		t.Errorf("WeekRange on Monday = (%s, %s), want (2025-10-13, 2025-10-19)", first, last)
	}
}

func TestWeekRangeUnknownConventionDefaultsToSunday(t *testing.T) {
	ref := time.Date(2025, 10, 15, 12, 0, 0, 0, time.Local)
	first, last := WeekRange(ref, "whatever")
	if first != "2025-10-12" || last != "2025-10-18" {
		t.Errorf("WeekRange(unknown) = (%s, %s), want Sunday-start range", first, last)
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		ref   string
		first string
		last  string
	}{
		{"2025-10-15", "2025-10-01", "2025-10-31"},
		{"2025-02-10", "2025-02-01", "2025-02-28"},
		{"2024-02-10", "2024-02-01", "2024-02-29"},
		{"2025-12-31", "2025-12-01", "2025-12-31"},
	}

	for _, tt := range tests {
		ref, err := time.Parse(Layout, tt.ref)
		if err != nil {
			t.Fatalf("bad test date %s: %v", tt.ref, err)
		}
		first, last := MonthRange(ref)
		if first != tt.first || last != tt.last {
			t.Errorf("MonthRange(%s) = (%s, %s), want (%s, %s)", tt.ref, first, last, tt.first, tt.last)
		}
	}
}

func TestTimestampToDate(t *testing.T) {
	want := time.Date(2025, 10, 13, 12, 0, 0, 0, time.Local)
	if got := TimestampToDate(want.UnixMilli()); got != "2025-10-13" {
		t.Errorf("TimestampToDate = %s, want 2025-10-13", got)
	}
}

func TestEnumerateDays(t *testing.T) {
	start := time.Date(2025, 10, 13, 0, 0, 0, 0, time.Local)

	days := EnumerateDays(start, start.AddDate(0, 0, 2))
	want := []string{"2025-10-13", "2025-10-14", "2025-10-15"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d = %s, want %s", i, days[i], want[i])
		}
	}

	// Single-day range yields one entry.
	if days := EnumerateDays(start, start); len(days) != 1 || days[0] != "2025-10-13" {
		t.Errorf("single-day enumeration = %v", days)
	}

	// Inverted range yields nothing.
	if days := EnumerateDays(start, start.AddDate(0, 0, -1)); days != nil {
		t.Errorf("inverted range should be nil, got %v", days)
	}
}

func TestEnumerateDaysAcrossMonthBoundary(t *testing.T) {
	start := time.Date(2025, 10, 30, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, 11, 2, 0, 0, 0, 0, time.Local)

	days := EnumerateDays(start, end)
	want := []string{"2025-10-30", "2025-10-31", "2025-11-01", "2025-11-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d: %v", len(want), len(days), days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d = %s, want %s", i, days[i], want[i])
		}
	}
}
