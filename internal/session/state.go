// Package session holds the per-user view state and the commands that
// mutate the event store on the user's behalf.
package session

import (
	"time"

	"famcal/internal/model"
)

// State is everything the UI needs to remember between commands. It is a
// value: commands take a State and return the next one.
type State struct {
	Year     int           `json:"year"`
	Month    time.Month    `json:"month"`
	Selected model.DateKey `json:"selected,omitempty"`
	Editing  string        `json:"editing,omitempty"`
}

// NewState starts on the given month with nothing selected.
func NewState(year int, month time.Month) State {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return State{Year: first.Year(), Month: first.Month()}
}

// ChangeMonth moves the displayed month by offset, rolling years.
func (s State) ChangeMonth(offset int) State {
	first := time.Date(s.Year, s.Month+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	s.Year, s.Month = first.Year(), first.Month()
	return s
}

// Open selects a day and resets the form to "new event".
func (s State) Open(key model.DateKey) State {
	s.Selected = key
	s.Editing = ""
	return s
}

// Close deselects the day.
func (s State) Close() State {
	s.Selected = ""
	s.Editing = ""
	return s
}

// StartEdit marks id as the event being edited.
func (s State) StartEdit(id string) State {
	s.Editing = id
	return s
}
