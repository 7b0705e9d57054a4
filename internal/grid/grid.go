// Package grid builds the fixed six-week, Monday-first month view.
package grid

import (
	"fmt"
	"time"

	"famcal/internal/holiday"
	"famcal/internal/lunar"
	"famcal/internal/model"
)

// CellCount is the number of days in every grid: six full weeks, so the
// grid height never changes between months.
const CellCount = 42

// Weekdays are the Monday-first column headers.
var Weekdays = [7]string{"월", "화", "수", "목", "금", "토", "일"}

// Reconciler produces the ordered event list for a day.
type Reconciler interface {
	Reconcile(key model.DateKey, date time.Time, li model.LunarInfo) []model.EventView
}

// Deps are the collaborators Build reads from.
type Deps struct {
	Events   Reconciler
	Location *time.Location // display location; nil means time.Local
}

// Cell is the render data for one day.
type Cell struct {
	Date       time.Time         `json:"-"`
	Key        model.DateKey     `json:"date"`
	Day        int               `json:"day"`
	InMonth    bool              `json:"inMonth"`
	Today      bool              `json:"today"`
	Saturday   bool              `json:"saturday"`
	Sunday     bool              `json:"sunday"`
	Holiday    bool              `json:"holiday"`
	Lunar      model.LunarInfo   `json:"-"`
	LunarBadge bool              `json:"lunarBadge"`
	LunarLabel string            `json:"lunarLabel,omitempty"`
	Holidays   []string          `json:"holidays"`
	Events     []model.EventView `json:"events"`
}

// Month is a full grid plus its header data.
type Month struct {
	Year     int       `json:"year"`
	Month    int       `json:"month"`
	Label    string    `json:"label"`
	Weekdays [7]string `json:"weekdays"`
	Cells    []Cell    `json:"cells"`
}

// Build returns the grid for year/month. now is the caller's clock snapshot
// and decides which cell is today. Build keeps no state between calls.
func Build(year int, month time.Month, deps Deps, now time.Time) Month {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	// Normalize out-of-range months (e.g. 13 -> January next year).
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	year, month = first.Year(), first.Month()

	offset := (int(first.Weekday()) + 6) % 7 // days since Monday
	todayKey := model.KeyOf(now.In(loc))

	cells := make([]Cell, CellCount)
	for i := range cells {
		// AddDate keeps local midnight across DST shifts; Add(24h) would not.
		date := first.AddDate(0, 0, i-offset)
		key := model.KeyOf(date)
		li := lunar.Resolve(date)
		holidays := holiday.For(date, li)
		if holidays == nil {
			holidays = []string{}
		}

		var events []model.EventView
		if deps.Events != nil {
			events = deps.Events.Reconcile(key, date, li)
		}
		if events == nil {
			events = []model.EventView{}
		}

		inMonth := date.Month() == month
		badge := lunar.BadgeDay(li)
		label := ""
		if badge {
			label = lunar.Label(li)
		}

		cells[i] = Cell{
			Date:       date,
			Key:        key,
			Day:        date.Day(),
			InMonth:    inMonth,
			Today:      key == todayKey,
			Saturday:   inMonth && date.Weekday() == time.Saturday,
			Sunday:     inMonth && date.Weekday() == time.Sunday,
			Holiday:    inMonth && len(holidays) > 0,
			Lunar:      li,
			LunarBadge: badge,
			LunarLabel: label,
			Holidays:   holidays,
			Events:     events,
		}
	}

	return Month{
		Year:     year,
		Month:    int(month),
		Label:    Label(year, month),
		Weekdays: Weekdays,
		Cells:    cells,
	}
}

// Label is the Korean month heading, e.g. "2025년 11월".
func Label(year int, month time.Month) string {
	return fmt.Sprintf("%d년 %d월", year, int(month))
}

// DayLabel is the long Korean form used by the day dialog, e.g.
// "2025년 11월 7일 (금)".
func DayLabel(date time.Time) string {
	wd := Weekdays[(int(date.Weekday())+6)%7]
	return fmt.Sprintf("%d년 %d월 %d일 (%s)", date.Year(), int(date.Month()), date.Day(), wd)
}
