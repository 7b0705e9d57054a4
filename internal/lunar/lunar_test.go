package lunar

import (
	"testing"
	"time"

	"famcal/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestResolve_KnownDates(t *testing.T) {
	tests := []struct {
		name  string
		date  time.Time
		month int
		day   int
	}{
		{"seollal 2025", date(2025, time.January, 29), 1, 1},
		{"day before seollal 2025", date(2025, time.January, 28), 12, 29},
		{"day after seollal 2025", date(2025, time.January, 30), 1, 2},
		{"buddha 2025", date(2025, time.May, 5), 4, 8},
		{"chuseok 2025", date(2025, time.October, 6), 8, 15},
		{"seollal 2024", date(2024, time.February, 10), 1, 1},
		{"chuseok 2024", date(2024, time.September, 17), 8, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := Resolve(tt.date)
			if !li.Valid || li.Leap {
				t.Fatalf("Resolve() = %+v, want valid non-leap", li)
			}
			if li.Month != tt.month || li.Day != tt.day {
				t.Errorf("Resolve() = %d/%d, want %d/%d", li.Month, li.Day, tt.month, tt.day)
			}
		})
	}
}

func TestResolve_LeapMonth(t *testing.T) {
	// 2025 has a leap sixth month starting on 2025-07-25.
	li := Resolve(date(2025, time.August, 1))
	if !li.Valid || !li.Leap || li.Month != 6 {
		t.Errorf("Resolve(2025-08-01) = %+v, want leap month 6", li)
	}
	if li.Matches(6, li.Day) {
		t.Error("leap month day must not match regular lunar rules")
	}
}

func TestResolve_IgnoresTimeOfDay(t *testing.T) {
	early := time.Date(2025, time.October, 6, 0, 0, 1, 0, time.UTC)
	late := time.Date(2025, time.October, 6, 23, 59, 59, 0, time.UTC)
	if Resolve(early) != Resolve(late) {
		t.Errorf("Resolve differs within the same day: %+v vs %+v", Resolve(early), Resolve(late))
	}
}

func TestResolve_OutOfRange(t *testing.T) {
	for _, d := range []time.Time{date(1899, time.December, 31), date(2101, time.January, 1)} {
		if li := Resolve(d); li.Valid {
			t.Errorf("Resolve(%s) = %+v, want invalid", d.Format("2006-01-02"), li)
		}
	}
	if !Supported(date(1900, time.January, 31)) || !Supported(date(2100, time.December, 31)) {
		t.Error("range boundaries should be supported")
	}
}

func TestLabelAndBadge(t *testing.T) {
	tests := []struct {
		li    model.LunarInfo
		label string
		badge bool
	}{
		{model.LunarInfo{Month: 8, Day: 15, Valid: true}, "음 8월 15일", false},
		{model.LunarInfo{Month: 4, Day: 1, Valid: true}, "음 4월 1일", true},
		{model.LunarInfo{Month: 6, Day: 10, Leap: true, Valid: true}, "음 윤6월 10일", false},
		{model.LunarInfo{Month: 12, Day: 20, Valid: true}, "음 12월 20일", true},
		{model.LunarInfo{}, "", false},
	}
	for _, tt := range tests {
		if got := Label(tt.li); got != tt.label {
			t.Errorf("Label(%+v) = %q, want %q", tt.li, got, tt.label)
		}
		if got := BadgeDay(tt.li); got != tt.badge {
			t.Errorf("BadgeDay(%+v) = %v, want %v", tt.li, got, tt.badge)
		}
	}
}
