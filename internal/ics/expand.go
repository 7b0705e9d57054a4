package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 1000
	// maxSpanDays bounds how many day cells one multi-day event may fill.
	maxSpanDays = 31
)

// expandConfig controls how recurrence expansion is performed.
type expandConfig struct {
	// Location is where occurrence dates are read. Nil means time.Local.
	Location *time.Location

	// RangeStart (inclusive) / RangeEnd (exclusive) bound occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps one VEVENT's expansion. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// expand turns parsed VEVENTs into one Imported per (event, day).
func expand(events []parsedEvent, cfg expandConfig) ([]Imported, error) {
	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is not after RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	base := make([]parsedEvent, 0, len(events))
	overrides := make(map[string][]parsedEvent)
	for _, ev := range events {
		if ev.Recurrence != nil && ev.UID != "" {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	out := make([]Imported, 0)
	seen := make(map[[2]string]bool)
	add := func(ev parsedEvent, start, end time.Time) {
		for _, key := range daysOf(ev, start, end, cfg) {
			k := [2]string{ev.UID + "\x00" + ev.Summary, string(key)}
			if ev.UID != "" && seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Imported{Key: key, UID: ev.UID, Title: ev.Summary, Notes: ev.Description})
		}
	}

	for _, ev := range base {
		ov := overrides[ev.UID]
		if ev.RawRRule == "" {
			start, end, o := applyOverride(ev, ov, ev.Start)
			add(o, start, end)
			continue
		}

		starts, hitCap := occurrences(ev, cfg)
		if hitCap {
			appLog.Warn("ics expansion truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		for _, s := range starts {
			start, end, o := applyOverride(ev, ov, s)
			add(o, start, end)
		}
	}
	return out, nil
}

// occurrences lists the rule's starts inside the configured range.
func occurrences(ev parsedEvent, cfg expandConfig) ([]time.Time, bool) {
	opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen by the event's length so spans that started before the range
	// still contribute their in-range days.
	lead := ev.End.Sub(ev.Start)
	starts := set.Between(cfg.RangeStart.Add(-lead), cfg.RangeEnd, true)

	if len(starts) > cfg.MaxOccurrencesPerEvent {
		return starts[:cfg.MaxOccurrencesPerEvent], true
	}
	return starts, false
}

// applyOverride swaps in the override whose RECURRENCE-ID equals start.
func applyOverride(ev parsedEvent, overrides []parsedEvent, start time.Time) (time.Time, time.Time, parsedEvent) {
	for _, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			return ov.Start, ov.End, ov
		}
	}
	return start, start.Add(ev.End.Sub(ev.Start)), ev
}

// daysOf lists the in-range date keys an occurrence covers. All-day spans
// use an exclusive end; timed events cover every day they touch.
func daysOf(ev parsedEvent, start, end time.Time, cfg expandConfig) []model.DateKey {
	start = start.In(cfg.Location)
	end = end.In(cfg.Location)

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, cfg.Location)
	keys := make([]model.DateKey, 0, 1)
	for i := 0; i < maxSpanDays; i++ {
		next := day.AddDate(0, 0, 1)
		if i > 0 && !day.Before(end) {
			break
		}
		if !next.After(cfg.RangeStart) {
			day = next
			continue
		}
		if !day.Before(cfg.RangeEnd) {
			break
		}
		keys = append(keys, model.KeyOf(day))
		day = next
	}
	return keys
}
