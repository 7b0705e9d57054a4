// Package recurring holds the fixed yearly family dates (birthdays,
// anniversaries, memorials) and resolves them per day.
package recurring

import (
	"strings"
	"time"

	"famcal/internal/model"
)

// IDPrefix namespaces catalog ids away from generated user event ids.
const IDPrefix = "rec-"

// Catalog is an immutable set of recurring definitions.
type Catalog struct {
	defs []model.RecurringDef
	ids  map[string]struct{}
}

var defaultDefs = []model.RecurringDef{
	{ID: "rec-yunhee-birthday", Title: "윤희 생일", Category: model.CategoryYunhee, Type: model.Solar, Month: 5, Day: 7, Order: 10},
	{ID: "rec-eon-birthday", Title: "이언 생일", Category: model.CategoryEon, Type: model.Solar, Month: 3, Day: 29, Order: 20},
	{ID: "rec-taeeun-birthday", Title: "태은 생일", Category: model.CategoryTaeeun, Type: model.Solar, Month: 5, Day: 12, Order: 30},
	{ID: "rec-wedding-anniversary", Title: "결혼 기념일", Category: model.CategoryFamily, Type: model.Solar, Month: 2, Day: 21, Order: 40},
	{ID: "rec-ando-birthday", Title: "안도 생일", Category: model.CategoryAndo, Type: model.Solar, Month: 3, Day: 2, Order: 50},
	{ID: "rec-daegu-grandma-birthday", Title: "대구 할머니 생신", Category: model.CategoryFamily, Type: model.Solar, Month: 8, Day: 24, Order: 60},
	{ID: "rec-daegu-grandpa-memorial", Title: "대구 할아버지 기일", Category: model.CategoryFamily, Type: model.Lunar, Month: 2, Day: 28, Order: 70},
	{ID: "rec-gangneung-grandpa-birthday", Title: "강릉 할아버지 생신", Category: model.CategoryFamily, Type: model.Lunar, Month: 9, Day: 24, Order: 80},
	{ID: "rec-gangneung-grandma-birthday", Title: "강릉 할머니 생신", Category: model.CategoryFamily, Type: model.Solar, Month: 12, Day: 9, Order: 90},
	{ID: "rec-gangneung-uncle-birthday", Title: "강릉 외삼촌 생일", Category: model.CategoryFamily, Type: model.Solar, Month: 10, Day: 1, Order: 100},
	{ID: "rec-daegu-aunt-birthday", Title: "대구 고모 생일", Category: model.CategoryFamily, Type: model.Solar, Month: 4, Day: 26, Order: 110},
}

var defaultCatalog = New(defaultDefs)

// Default returns the family catalog.
func Default() *Catalog {
	return defaultCatalog
}

// New builds a catalog from defs. Definitions whose id lacks IDPrefix get it
// prepended so they can never collide with user ids.
func New(defs []model.RecurringDef) *Catalog {
	c := &Catalog{
		defs: make([]model.RecurringDef, len(defs)),
		ids:  make(map[string]struct{}, len(defs)),
	}
	for i, d := range defs {
		if !strings.HasPrefix(d.ID, IDPrefix) {
			d.ID = IDPrefix + d.ID
		}
		c.defs[i] = d
		c.ids[d.ID] = struct{}{}
	}
	return c
}

// Definitions returns a copy of the catalog in definition order.
func (c *Catalog) Definitions() []model.RecurringDef {
	out := make([]model.RecurringDef, len(c.defs))
	copy(out, c.defs)
	return out
}

// IsRecurringID reports whether id belongs to a catalog definition.
func (c *Catalog) IsRecurringID(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// OccurrencesFor lists the definitions falling on date, in catalog order.
// Solar entries match the Gregorian month/day, lunar entries the non-leap
// lunar month/day in li.
func (c *Catalog) OccurrencesFor(date time.Time, li model.LunarInfo) []model.EventView {
	var out []model.EventView
	for _, d := range c.defs {
		if Matches(d, date, li) {
			out = append(out, model.ViewOfRecurring(d))
		}
	}
	return out
}

// Matches reports whether d occurs on date.
func Matches(d model.RecurringDef, date time.Time, li model.LunarInfo) bool {
	switch d.Type {
	case model.Solar:
		return int(date.Month()) == d.Month && date.Day() == d.Day
	case model.Lunar:
		return li.Matches(d.Month, d.Day)
	default:
		return false
	}
}
