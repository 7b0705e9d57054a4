// Package store owns the user-authored events keyed by date and keeps a
// durable JSON copy of them.
//
// The in-memory map is the source of truth for the running process. Every
// mutation is followed by a save through the configured Persister; save and
// load failures are logged and counted but never returned to callers.
package store

import (
	"errors"
	"io/fs"
	"sort"
	"sync"

	appLog "famcal/internal/log"
	"famcal/internal/metrics"
	"famcal/internal/model"
	"famcal/internal/recurring"
)

// Data is the serialized form of the store: date key to ordered events.
// A key is present only when it holds at least one event.
type Data map[model.DateKey][]model.UserEvent

// Persister is durable storage for the encoded store. Load returns an error
// wrapping fs.ErrNotExist when nothing has been saved yet.
type Persister interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type datesGauge interface {
	SetStoredDates(n int)
}

// Option configures a Store.
type Option func(*Store)

// WithPersister enables durable saves. Without it the store is memory-only.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithCatalog sets the recurring catalog used to protect recurring ids.
func WithCatalog(c *recurring.Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	events Data

	persister Persister
	catalog   *recurring.Catalog
	rec       metrics.Recorder
}

// New returns an empty store. Call Load to read durable storage.
func New(opts ...Option) *Store {
	s := &Store{
		events:  Data{},
		catalog: recurring.Default(),
		rec:     metrics.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Deserialize builds a store holding a copy of d. Nothing is persisted.
func Deserialize(d Data, opts ...Option) *Store {
	s := New(opts...)
	s.events = normalize(d)
	return s
}

// Load replaces the in-memory state with the durable copy. A missing,
// unreadable or corrupt copy leaves the store empty.
func (s *Store) Load() {
	if s.persister == nil {
		return
	}

	raw, err := s.persister.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("no saved events yet; starting empty")
			return
		}
		appLog.Error("failed to read saved events; starting empty", err)
		s.rec.RecordPersistFailure("load")
		return
	}

	d, err := Decode(raw)
	if err != nil {
		appLog.Error("saved events are corrupt; starting empty", err)
		s.rec.RecordPersistFailure("load")
		return
	}

	s.mu.Lock()
	s.events = d
	s.mu.Unlock()
	s.updateGauge(len(d))
	appLog.Info("saved events loaded", "dates", len(d))
}

// EventsFor returns a copy of the events stored under key, never nil.
func (s *Store) EventsFor(key model.DateKey) []model.UserEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneList(s.events[key])
}

// Find returns the event with id under key.
func (s *Store) Find(key model.DateKey, id string) (model.UserEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events[key] {
		if ev.ID == id {
			return ev.Clone(), true
		}
	}
	return model.UserEvent{}, false
}

// Dates returns the keys holding events, ascending.
func (s *Store) Dates() []model.DateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]model.DateKey, 0, len(s.events))
	for k := range s.events {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SetEvents replaces the list under key. An empty list removes the key.
func (s *Store) SetEvents(key model.DateKey, list []model.UserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, cloneList(list))
	s.commitLocked("set")
}

// AddEvent appends ev to the list under key.
func (s *Store) AddEvent(key model.DateKey, ev model.UserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[key] = append(s.events[key], ev.Clone())
	s.commitLocked("add")
}

// UpdateEvent applies fn to the event with id under key, in place. It
// reports false, without saving, when no such event exists.
func (s *Store) UpdateEvent(key model.DateKey, id string, fn func(ev *model.UserEvent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.events[key]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		updated := list[i].Clone()
		fn(&updated)
		updated.ID = id
		list[i] = updated
		s.commitLocked("update")
		return true
	}
	return false
}

// DeleteEvent removes the event with id under key. Recurring catalog ids
// and unknown ids are a no-op; the result reports whether anything changed.
func (s *Store) DeleteEvent(key model.DateKey, id string) bool {
	if s.catalog != nil && s.catalog.IsRecurringID(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.events[key]
	next := make([]model.UserEvent, 0, len(list))
	for _, ev := range list {
		if ev.ID != id {
			next = append(next, ev)
		}
	}
	if len(next) == len(list) {
		return false
	}
	s.setLocked(key, next)
	s.commitLocked("delete")
	return true
}

// DeleteAll removes every user event under key.
func (s *Store) DeleteAll(key model.DateKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[key]; !ok {
		return false
	}
	delete(s.events, key)
	s.commitLocked("delete_all")
	return true
}

// ReplaceAll overwrites the whole store with d (no merge) and saves it.
func (s *Store) ReplaceAll(d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = normalize(d)
	s.commitLocked("replace")
}

// Serialize returns a deep copy of the store contents.
func (s *Store) Serialize() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return normalize(s.events)
}

func (s *Store) setLocked(key model.DateKey, list []model.UserEvent) {
	if len(list) == 0 {
		delete(s.events, key)
		return
	}
	s.events[key] = list
}

// commitLocked records the mutation and saves. Callers hold s.mu.
func (s *Store) commitLocked(op string) {
	s.rec.RecordMutation(op)
	s.updateGauge(len(s.events))
	if s.persister == nil {
		return
	}

	raw, err := Encode(s.events, false)
	if err != nil {
		appLog.Error("failed to encode events", err, "op", op)
		s.rec.RecordPersistFailure(op)
		return
	}
	if err := s.persister.Save(raw); err != nil {
		appLog.Error("failed to save events", err, "op", op)
		s.rec.RecordPersistFailure(op)
		return
	}
	appLog.Debug("events saved", "op", op, "dates", len(s.events), "bytes", len(raw))
}

func (s *Store) updateGauge(n int) {
	if g, ok := s.rec.(datesGauge); ok {
		g.SetStoredDates(n)
	}
}

func normalize(d Data) Data {
	out := make(Data, len(d))
	for k, list := range d {
		if len(list) == 0 {
			continue
		}
		out[k] = cloneList(list)
	}
	return out
}

func cloneList(list []model.UserEvent) []model.UserEvent {
	out := make([]model.UserEvent, len(list))
	for i, ev := range list {
		out[i] = ev.Clone()
	}
	return out
}
