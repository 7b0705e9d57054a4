// Package lunar converts Gregorian dates to the East Asian lunisolar
// calendar used for Korean holidays and lunar birthdays.
package lunar

import (
	"strconv"
	"time"

	"github.com/6tail/lunar-go/calendar"

	"famcal/internal/model"
)

// Supported conversion window. 1900-01-31 is lunar 1900-01-01.
var (
	rangeStart = time.Date(1900, time.January, 31, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2100, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Supported reports whether the local date of t can be converted.
func Supported(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(rangeStart) && !d.After(rangeEnd)
}

// Resolve returns the lunar month/day of t's local calendar date. The time
// of day and location only matter through t.Year/Month/Day.
func Resolve(t time.Time) model.LunarInfo {
	if !Supported(t) {
		return model.LunarInfo{}
	}

	l := calendar.NewSolarFromYmd(t.Year(), int(t.Month()), t.Day()).GetLunar()
	month := l.GetMonth()
	leap := false
	// lunar-go reports leap months as negative numbers.
	if month < 0 {
		month = -month
		leap = true
	}
	return model.LunarInfo{
		Month: month,
		Day:   l.GetDay(),
		Leap:  leap,
		Valid: true,
	}
}

// Label renders the short Korean badge text, e.g. "음 8월 15일" or
// "음 윤6월 1일". Invalid info yields "".
func Label(li model.LunarInfo) string {
	if !li.Valid {
		return ""
	}
	prefix := "음 "
	if li.Leap {
		prefix += "윤"
	}
	return prefix + strconv.Itoa(li.Month) + "월 " + strconv.Itoa(li.Day) + "일"
}

// BadgeDay reports whether the day starts a lunar "decade" (1st, 10th or
// 20th), the only days the grid shows a lunar badge on. Leap-month days get
// no badge.
func BadgeDay(li model.LunarInfo) bool {
	if !li.Valid || li.Leap {
		return false
	}
	switch li.Day {
	case 1, 10, 20:
		return true
	}
	return false
}
