package grid

import (
	"testing"
	"time"

	"famcal/internal/holiday"
	"famcal/internal/model"
	"famcal/internal/reconcile"
	"famcal/internal/recurring"
	"famcal/internal/store"
)

var seoul = time.FixedZone("KST", 9*60*60)

func deps(s *store.Store) Deps {
	return Deps{Events: reconcile.New(recurring.Default(), s), Location: seoul}
}

func TestBuild_ShapeForEveryMonth(t *testing.T) {
	now := time.Date(2025, time.November, 7, 9, 0, 0, 0, seoul)
	d := deps(store.New())

	for year := 2024; year <= 2026; year++ {
		for m := time.January; m <= time.December; m++ {
			g := Build(year, m, d, now)
			if len(g.Cells) != CellCount {
				t.Fatalf("%d-%02d: %d cells, want %d", year, m, len(g.Cells), CellCount)
			}
			if wd := g.Cells[0].Date.Weekday(); wd != time.Monday {
				t.Errorf("%d-%02d: first cell is %v, want Monday", year, m, wd)
			}
			firstKey := model.KeyOf(time.Date(year, m, 1, 0, 0, 0, 0, seoul))
			found := false
			for i, c := range g.Cells {
				if c.Key == firstKey {
					found = c.InMonth
				}
				if i > 0 && c.Date.Sub(g.Cells[i-1].Date) != 24*time.Hour {
					t.Errorf("%d-%02d: cells %d and %d are not consecutive days", year, m, i-1, i)
				}
			}
			if !found {
				t.Errorf("%d-%02d: the 1st is not an in-month cell", year, m)
			}
		}
	}
}

func TestBuild_November2025(t *testing.T) {
	now := time.Date(2025, time.November, 7, 9, 0, 0, 0, seoul)
	g := Build(2025, time.November, deps(store.New()), now)

	// 2025-11-01 is a Saturday, so the grid opens on Monday 2025-10-27.
	if g.Cells[0].Key != "2025-10-27" {
		t.Errorf("first cell = %s, want 2025-10-27", g.Cells[0].Key)
	}
	if g.Cells[41].Key != "2025-12-07" {
		t.Errorf("last cell = %s, want 2025-12-07", g.Cells[41].Key)
	}
	if g.Label != "2025년 11월" {
		t.Errorf("Label = %q", g.Label)
	}
	if g.Cells[0].InMonth || !g.Cells[5].InMonth {
		t.Error("in-month flags wrong around the 1st")
	}
	if !g.Cells[5].Saturday || !g.Cells[6].Sunday {
		t.Error("weekend flags wrong for 11-01/11-02")
	}

	todays := 0
	for _, c := range g.Cells {
		if c.Today {
			todays++
			if c.Key != "2025-11-07" {
				t.Errorf("today flagged on %s", c.Key)
			}
		}
	}
	if todays != 1 {
		t.Errorf("today cells = %d, want 1", todays)
	}
}

func TestBuild_TodayUsesDisplayLocation(t *testing.T) {
	// 2025-11-06 20:00 UTC is already 2025-11-07 in Seoul.
	now := time.Date(2025, time.November, 6, 20, 0, 0, 0, time.UTC)
	g := Build(2025, time.November, deps(store.New()), now)
	for _, c := range g.Cells {
		if c.Today && c.Key != "2025-11-07" {
			t.Errorf("today = %s, want 2025-11-07", c.Key)
		}
	}
}

func TestBuild_HolidaysLunarAndEvents(t *testing.T) {
	s := store.Deserialize(store.Data{
		"2025-10-06": {{ID: "u1", Category: model.CategoryFamily, Title: "성묘", CreatedAt: 1}},
	})
	g := Build(2025, time.October, deps(s), time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul))

	byKey := map[model.DateKey]Cell{}
	for _, c := range g.Cells {
		byKey[c.Key] = c
	}

	chuseok := byKey["2025-10-06"]
	if !chuseok.Holiday || len(chuseok.Holidays) != 1 || chuseok.Holidays[0] != holiday.Chuseok {
		t.Errorf("2025-10-06 holidays = %v", chuseok.Holidays)
	}
	if len(chuseok.Events) != 1 || chuseok.Events[0].ID != "u1" {
		t.Errorf("2025-10-06 events = %+v", chuseok.Events)
	}
	if got := byKey["2025-10-05"].Holidays; len(got) != 1 || got[0] != holiday.ChuseokRecess {
		t.Errorf("2025-10-05 holidays = %v", got)
	}
	if got := byKey["2025-10-03"].Holidays; len(got) != 1 || got[0] != "개천절" {
		t.Errorf("2025-10-03 holidays = %v", got)
	}

	uncle := byKey["2025-10-01"]
	if len(uncle.Events) != 1 || uncle.Events[0].ID != "rec-gangneung-uncle-birthday" {
		t.Errorf("2025-10-01 events = %+v", uncle.Events)
	}

	// Lunar 8/20 falls on 2025-10-11; 8/10 on 2025-10-01.
	for _, k := range []model.DateKey{"2025-10-01", "2025-10-11"} {
		c := byKey[k]
		if !c.LunarBadge || c.LunarLabel == "" {
			t.Errorf("%s: lunar badge missing (lunar %+v)", k, c.Lunar)
		}
	}
	if c := byKey["2025-10-06"]; c.LunarBadge {
		t.Errorf("2025-10-06 (lunar 8/15) should not carry a badge")
	}

	for _, c := range g.Cells {
		if c.Holidays == nil || c.Events == nil {
			t.Fatalf("%s: nil slices in cell", c.Key)
		}
	}
}

func TestBuild_NormalizesMonth(t *testing.T) {
	g := Build(2025, 13, Deps{Location: seoul}, time.Now())
	if g.Year != 2026 || g.Month != 1 {
		t.Errorf("Build(2025, 13) = %d-%d, want 2026-1", g.Year, g.Month)
	}
}

func TestDayLabel(t *testing.T) {
	got := DayLabel(time.Date(2025, time.November, 7, 0, 0, 0, 0, seoul))
	if got != "2025년 11월 7일 (금)" {
		t.Errorf("DayLabel() = %q", got)
	}
}

func TestBuild_NoBadgeInLeapMonth(t *testing.T) {
	// 2023 has a leap second month starting on 2023-03-22.
	g := Build(2023, time.March, Deps{Location: seoul}, time.Now())

	leapDays := 0
	for _, c := range g.Cells {
		if !c.Lunar.Leap {
			continue
		}
		leapDays++
		if c.LunarBadge || c.LunarLabel != "" {
			t.Errorf("%s: leap-month day carries badge %q", c.Key, c.LunarLabel)
		}
	}
	if leapDays == 0 {
		t.Fatal("expected leap-month days in the March 2023 grid")
	}
}

func TestBuild_OutOfMonthCellsAreUnstyled(t *testing.T) {
	g := Build(2025, time.December, Deps{Location: seoul}, time.Now())

	byKey := map[model.DateKey]Cell{}
	for _, c := range g.Cells {
		byKey[c.Key] = c
	}

	if c := byKey["2025-12-06"]; !c.Saturday || !byKey["2025-12-07"].Sunday || !byKey["2025-12-25"].Holiday {
		t.Errorf("in-month weekend/holiday flags missing")
	}
	newYear := byKey["2026-01-01"]
	if newYear.InMonth || newYear.Holiday {
		t.Errorf("2026-01-01: inMonth=%v holiday=%v, want both false", newYear.InMonth, newYear.Holiday)
	}
	if len(newYear.Holidays) != 1 || newYear.Holidays[0] != "신정" {
		t.Errorf("2026-01-01 holidays = %v", newYear.Holidays)
	}
	for _, k := range []model.DateKey{"2026-01-03", "2026-01-04", "2026-01-10", "2026-01-11"} {
		if c := byKey[k]; c.Saturday || c.Sunday {
			t.Errorf("%s: weekend flag set outside the month", k)
		}
	}
}
