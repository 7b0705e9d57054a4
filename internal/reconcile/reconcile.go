// Package reconcile merges the recurring catalog with stored user events
// into the ordered per-date list the calendar renders.
package reconcile

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"famcal/internal/model"
	"famcal/internal/recurring"
)

// EventSource is the read side of the event store.
type EventSource interface {
	EventsFor(key model.DateKey) []model.UserEvent
}

// Reconciler is safe for concurrent use.
type Reconciler struct {
	catalog *recurring.Catalog
	source  EventSource

	// collate.Collator keeps scratch buffers and is not goroutine safe.
	mu   sync.Mutex
	coll *collate.Collator
}

// New returns a Reconciler using Korean collation for title ties.
func New(catalog *recurring.Catalog, source EventSource) *Reconciler {
	if catalog == nil {
		catalog = recurring.Default()
	}
	return &Reconciler{
		catalog: catalog,
		source:  source,
		coll:    collate.New(language.Korean),
	}
}

// Reconcile returns the catalog occurrences for date followed by the user
// events stored under key, in display order. The order is computed on every
// call; nothing about it is stored.
func (r *Reconciler) Reconcile(key model.DateKey, date time.Time, li model.LunarInfo) []model.EventView {
	views := r.catalog.OccurrencesFor(date, li)
	if r.source != nil {
		for _, ev := range r.source.EventsFor(key) {
			views = append(views, model.ViewOfUser(ev))
		}
	}
	if views == nil {
		views = []model.EventView{}
	}
	r.Sort(views)
	return views
}

// Sort orders views in place, stably:
//  1. recurring before user events
//  2. recurring by Order ascending
//  3. user events by CreatedAt ascending (0 when unknown), then by title
//     under Korean collation
func (r *Reconciler) Sort(views []model.EventView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.SortStableFunc(views, func(a, b model.EventView) int {
		if a.IsRecurring != b.IsRecurring {
			if a.IsRecurring {
				return -1
			}
			return 1
		}
		if a.IsRecurring {
			return cmp.Compare(a.Order, b.Order)
		}
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return r.coll.CompareString(a.Title, b.Title)
	})
}
