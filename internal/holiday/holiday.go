// Package holiday computes the Korean public holiday badges for a day.
package holiday

import (
	"time"

	"famcal/internal/model"
)

const (
	Seollal       = "설날"
	SeollalRecess = "설날 연휴"
	Buddha        = "부처님오신날"
	Chuseok       = "추석"
	ChuseokRecess = "추석 연휴"
)

// SolarHoliday is a fixed Gregorian month/day holiday.
type SolarHoliday struct {
	Month time.Month
	Day   int
	Name  string
}

var solarHolidays = []SolarHoliday{
	{time.January, 1, "신정"},
	{time.March, 1, "삼일절"},
	{time.May, 5, "어린이날"},
	{time.June, 6, "현충일"},
	{time.August, 15, "광복절"},
	{time.October, 3, "개천절"},
	{time.October, 9, "한글날"},
	{time.December, 25, "성탄절"},
}

// lunarRule fires when the lunar month is Month and the day is any of Days.
type lunarRule struct {
	Month int
	Days  []int
	Name  string
}

// Evaluated in order; the recess days around Seollal and Chuseok are
// separate entries so a multi-day holiday yields one badge per day.
var lunarRules = []lunarRule{
	{1, []int{1}, Seollal},
	{12, []int{29, 30}, SeollalRecess},
	{1, []int{2}, SeollalRecess},
	{4, []int{8}, Buddha},
	{8, []int{15}, Chuseok},
	{8, []int{14, 16}, ChuseokRecess},
}

// SolarHolidays returns a copy of the fixed solar table in display order.
func SolarHolidays() []SolarHoliday {
	out := make([]SolarHoliday, len(solarHolidays))
	copy(out, solarHolidays)
	return out
}

// For returns the holiday names for date: solar table hits first, then lunar
// rules. Lunar rules never fire for invalid or leap-month lunar info.
func For(date time.Time, li model.LunarInfo) []string {
	var out []string

	for _, h := range solarHolidays {
		if h.Month == date.Month() && h.Day == date.Day() {
			out = append(out, h.Name)
		}
	}

	for _, r := range lunarRules {
		for _, d := range r.Days {
			if li.Matches(r.Month, d) {
				out = append(out, r.Name)
				break
			}
		}
	}

	return out
}
