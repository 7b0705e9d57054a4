package ics

import (
	"fmt"
	"maps"
	"slices"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"famcal/internal/lunar"
	"famcal/internal/model"
	"famcal/internal/recurring"
	"famcal/internal/store"
)

const (
	productID = "-//famcal//Family Calendar//KO"
	uidDomain = "@famcal"
)

// Export renders user events and the recurring catalog as an iCalendar
// feed. Every user event is emitted. Solar recurring entries become one
// yearly RRULE anchored at from; lunar ones are expanded to their solar
// dates inside [from, to).
func Export(events store.Data, catalog *recurring.Catalog, from, to time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	if !to.After(from) {
		return "", fmt.Errorf("ics: export range %s..%s is empty", model.KeyOf(from), model.KeyOf(to))
	}
	if catalog == nil {
		catalog = recurring.Default()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("가족 캘린더")
	cal.SetXWRTimezone(loc.String())

	stamp := time.Now().UTC()

	for _, key := range sortedKeys(events) {
		day := key.Time(loc)
		if day.IsZero() {
			continue
		}
		for _, ev := range events[key] {
			ve := cal.AddEvent(ev.ID + uidDomain)
			ve.SetDtStampTime(stamp)
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
			ve.SetSummary(ev.Title)
			if ev.Notes != "" {
				ve.SetDescription(ev.Notes)
			}
			ve.AddProperty(ical.ComponentPropertyCategories, ev.Category.Info().Label)
			if ev.CreatedAt > 0 {
				ve.SetCreatedTime(time.UnixMilli(ev.CreatedAt).UTC())
			}
		}
	}

	from = startOfDay(from.In(loc))
	to = startOfDay(to.In(loc))
	for _, def := range catalog.Definitions() {
		switch def.Type {
		case model.Solar:
			addSolarRecurring(cal, def, from, loc, stamp)
		case model.Lunar:
			addLunarRecurring(cal, def, from, to, stamp)
		}
	}

	return cal.Serialize(), nil
}

func addSolarRecurring(cal *ical.Calendar, def model.RecurringDef, from time.Time, loc *time.Location, stamp time.Time) {
	first := time.Date(from.Year(), time.Month(def.Month), def.Day, 0, 0, 0, 0, loc)
	if first.Before(from) {
		first = first.AddDate(1, 0, 0)
	}
	rule := rrule.ROption{
		Freq:       rrule.YEARLY,
		Bymonth:    []int{def.Month},
		Bymonthday: []int{def.Day},
	}

	ve := cal.AddEvent(def.ID + uidDomain)
	ve.SetDtStampTime(stamp)
	ve.SetAllDayStartAt(first)
	ve.SetAllDayEndAt(first.AddDate(0, 0, 1))
	ve.SetSummary(def.Title)
	ve.AddProperty(ical.ComponentPropertyRrule, rule.RRuleString())
	ve.AddProperty(ical.ComponentPropertyCategories, def.Category.Info().Label)
}

func addLunarRecurring(cal *ical.Calendar, def model.RecurringDef, from, to time.Time, stamp time.Time) {
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if !recurring.Matches(def, day, lunar.Resolve(day)) {
			continue
		}
		ve := cal.AddEvent(def.ID + "-" + string(model.KeyOf(day)) + uidDomain)
		ve.SetDtStampTime(stamp)
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ve.SetSummary(def.Title)
		ve.SetDescription(fmt.Sprintf("음력 %d월 %d일", def.Month, def.Day))
		ve.AddProperty(ical.ComponentPropertyCategories, def.Category.Info().Label)
	}
}

func sortedKeys(d store.Data) []model.DateKey {
	return slices.Sorted(maps.Keys(d))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
