package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateKeyLayout is the canonical YYYY-MM-DD form used to index events.
const DateKeyLayout = "2006-01-02"

// DateKey identifies one calendar day in local time, e.g. "2025-11-07".
type DateKey string

// KeyOf formats t's own year/month/day. Callers convert to the display
// location first; KeyOf never shifts to UTC.
func KeyOf(t time.Time) DateKey {
	return DateKey(fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day()))
}

// ParseDateKey validates s as a real calendar date in YYYY-MM-DD form.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(DateKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", s, err)
	}
	// time.Parse accepts the layout loosely for some inputs; require the
	// canonical zero-padded form.
	if KeyOf(t) != DateKey(s) {
		return "", fmt.Errorf("invalid date key %q: not canonical", s)
	}
	return DateKey(s), nil
}

// Time returns local midnight of the key in loc. An invalid key yields the
// zero time.
func (k DateKey) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateKeyLayout, string(k), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (k DateKey) String() string { return string(k) }

// UserEvent is a user-authored event stored under a DateKey.
//
// Extra keeps members this package does not interpret, so records written
// by a newer client survive a load/save cycle untouched. Known members with
// an unexpected JSON type ("createdAt":"1000", "id":7) are coerced into the
// typed fields and written back in their original form while unchanged.
type UserEvent struct {
	ID        string
	Category  Category
	Title     string
	Notes     string
	ImageData string
	CreatedAt int64 // unix millis; 0 means unknown
	UpdatedAt int64

	Extra map[string]json.RawMessage

	// raw holds the original bytes of known members that the typed
	// encoding would not reproduce.
	raw map[string]json.RawMessage
}

var knownUserEventFields = map[string]struct{}{
	"id": {}, "category": {}, "title": {}, "notes": {},
	"imageData": {}, "createdAt": {}, "updatedAt": {},
}

// omitted when zero by userEventJSON
var omitEmptyFields = map[string]struct{}{
	"notes": {}, "imageData": {}, "createdAt": {}, "updatedAt": {},
}

type userEventJSON struct {
	ID        string   `json:"id"`
	Category  Category `json:"category"`
	Title     string   `json:"title"`
	Notes     string   `json:"notes,omitempty"`
	ImageData string   `json:"imageData,omitempty"`
	CreatedAt int64    `json:"createdAt,omitempty"`
	UpdatedAt int64    `json:"updatedAt,omitempty"`
}

func (e UserEvent) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(userEventJSON{
		ID:        e.ID,
		Category:  e.Category,
		Title:     e.Title,
		Notes:     e.Notes,
		ImageData: e.ImageData,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	})
	if err != nil || (len(e.Extra) == 0 && len(e.raw) == 0) {
		return known, err
	}

	merged := make(map[string]json.RawMessage, len(e.Extra)+7)
	for k, v := range e.Extra {
		if _, ok := knownUserEventFields[k]; ok {
			continue
		}
		merged[k] = v
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	for k, v := range e.raw {
		if val, _ := decodeKnownField(k, v); val == e.field(k) {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON accepts any JSON object. Known members of the wrong type
// are coerced where possible and never fail the record.
func (e *UserEvent) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*e = UserEvent{}
	for k, v := range all {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err
		}
		v = json.RawMessage(buf.Bytes())

		if _, ok := knownUserEventFields[k]; !ok {
			if e.Extra == nil {
				e.Extra = make(map[string]json.RawMessage)
			}
			e.Extra[k] = v
			continue
		}
		val, exact := decodeKnownField(k, v)
		e.setField(k, val)
		if !exact {
			if e.raw == nil {
				e.raw = make(map[string]json.RawMessage)
			}
			e.raw[k] = v
		}
	}
	return nil
}

// decodeKnownField converts v to the Go type of member k (string or int64).
// exact is false when re-encoding the value would not give back v.
func decodeKnownField(k string, v json.RawMessage) (val any, exact bool) {
	_, omitEmpty := omitEmptyFields[k]
	switch k {
	case "createdAt", "updatedAt":
		n, ok := decodeMillis(v)
		return n, ok && !(omitEmpty && n == 0)
	default:
		str, ok := decodeText(v)
		return str, ok && !(omitEmpty && str == "")
	}
}

func decodeText(v json.RawMessage) (string, bool) {
	if len(v) == 0 {
		return "", false
	}
	switch c := v[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(v), false
	}
	return "", false
}

func decodeMillis(v json.RawMessage) (int64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	text := string(v)
	exact := true
	if v[0] == '"' {
		if err := json.Unmarshal(v, &text); err != nil {
			return 0, false
		}
		exact = false
	}
	n := json.Number(strings.TrimSpace(text))
	if i, err := n.Int64(); err == nil {
		return i, exact
	}
	if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return int64(f), false
	}
	return 0, false
}

func (e UserEvent) field(k string) any {
	switch k {
	case "id":
		return e.ID
	case "category":
		return string(e.Category)
	case "title":
		return e.Title
	case "notes":
		return e.Notes
	case "imageData":
		return e.ImageData
	case "createdAt":
		return e.CreatedAt
	case "updatedAt":
		return e.UpdatedAt
	}
	return nil
}

func (e *UserEvent) setField(k string, val any) {
	s, _ := val.(string)
	n, _ := val.(int64)
	switch k {
	case "id":
		e.ID = s
	case "category":
		e.Category = Category(s)
	case "title":
		e.Title = s
	case "notes":
		e.Notes = s
	case "imageData":
		e.ImageData = s
	case "createdAt":
		e.CreatedAt = n
	case "updatedAt":
		e.UpdatedAt = n
	}
}

// Clone returns a deep copy, including Extra.
func (e UserEvent) Clone() UserEvent {
	e.Extra = cloneRaw(e.Extra)
	e.raw = cloneRaw(e.raw)
	return e
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// CalendarType says which calendar a recurring definition is anchored to.
type CalendarType string

const (
	Solar CalendarType = "solar"
	Lunar CalendarType = "lunar"
)

// RecurringDef is a fixed yearly family occasion. IDs carry the "rec-"
// prefix, which generated user ids never do.
type RecurringDef struct {
	ID       string
	Title    string
	Category Category
	Type     CalendarType
	Month    int // 1-indexed, in the Type calendar
	Day      int
	Order    int
}

// LunarInfo is a day's position in the lunisolar calendar. Valid is false
// when the date falls outside the supported conversion range.
type LunarInfo struct {
	Month int
	Day   int
	Leap  bool
	Valid bool
}

// Matches reports whether the info is a regular (non-leap) lunar month/day.
func (l LunarInfo) Matches(month, day int) bool {
	return l.Valid && !l.Leap && l.Month == month && l.Day == day
}

// EventView is one row of the reconciled per-date list.
type EventView struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Category    Category                   `json:"category"`
	Notes       string                     `json:"notes"`
	ImageData   string                     `json:"imageData,omitempty"`
	CreatedAt   int64                      `json:"createdAt,omitempty"`
	UpdatedAt   int64                      `json:"updatedAt,omitempty"`
	IsRecurring bool                       `json:"isRecurring"`
	Order       int                        `json:"order,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

// ViewOfUser projects a stored record into the reconciled form.
func ViewOfUser(e UserEvent) EventView {
	e = e.Clone()
	return EventView{
		ID:        e.ID,
		Title:     e.Title,
		Category:  e.Category,
		Notes:     e.Notes,
		ImageData: e.ImageData,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Extra:     e.Extra,
	}
}

// ViewOfRecurring projects a catalog definition into the reconciled form.
func ViewOfRecurring(d RecurringDef) EventView {
	return EventView{
		ID:          d.ID,
		Title:       d.Title,
		Category:    d.Category,
		IsRecurring: true,
		Order:       d.Order,
	}
}
