package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"famcal/internal/grid"
	appLog "famcal/internal/log"
	"famcal/internal/lunar"
	"famcal/internal/model"
	"famcal/internal/reconcile"
	"famcal/internal/recurring"
	"famcal/internal/store"
)

var (
	// ErrValidation blocks a submission missing its category or title.
	ErrValidation = errors.New("session: category and title are required")
	// ErrNoDate means a command needed a selected day and none was open.
	ErrNoDate = errors.New("session: no date selected")
	// ErrRecurring is returned when a command targets a catalog entry.
	ErrRecurring = errors.New("session: recurring events cannot be changed")
)

// Submission is the add/edit form.
type Submission struct {
	Category    string `json:"category" validate:"required,category"`
	Title       string `json:"title" validate:"required"`
	Notes       string `json:"notes"`
	RemoveImage bool   `json:"removeImage"`
}

// Commands applies user actions to the store. Create with NewCommands.
type Commands struct {
	store      *store.Store
	catalog    *recurring.Catalog
	reconciler *reconcile.Reconciler
	loc        *time.Location

	validate *validator.Validate
	policy   *bluemonday.Policy
	now      func() time.Time
	newID    func() string
}

// Option configures Commands.
type Option func(*Commands)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Commands) { c.now = now }
}

// WithIDs replaces the id generator, mostly for tests.
func WithIDs(newID func() string) Option {
	return func(c *Commands) { c.newID = newID }
}

// WithLocation sets the display location for date keys.
func WithLocation(loc *time.Location) Option {
	return func(c *Commands) { c.loc = loc }
}

// NewCommands wires commands to s and the recurring catalog.
func NewCommands(s *store.Store, catalog *recurring.Catalog, opts ...Option) *Commands {
	if catalog == nil {
		catalog = recurring.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})

	c := &Commands{
		store:      s,
		catalog:    catalog,
		reconciler: reconcile.New(catalog, s),
		loc:        time.Local,
		validate:   v,
		policy:     bluemonday.StrictPolicy(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DayView is the content of the day dialog.
type DayView struct {
	Key          model.DateKey     `json:"date"`
	Label        string            `json:"label"`
	Events       []model.EventView `json:"events"`
	CanDeleteAll bool              `json:"canDeleteAll"`
	EditingID    string            `json:"editingId,omitempty"`
	Holidays     []string          `json:"holidays"`
	LunarLabel   string            `json:"lunarLabel,omitempty"`
	State        State             `json:"state"`
}

// Month builds the grid for the state's displayed month.
func (c *Commands) Month(st State) grid.Month {
	return grid.Build(st.Year, st.Month, grid.Deps{Events: c.reconciler, Location: c.loc}, c.now())
}

// Day returns the dialog data for the selected date.
func (c *Commands) Day(st State) (DayView, error) {
	if st.Selected == "" {
		return DayView{}, ErrNoDate
	}
	date := st.Selected.Time(c.loc)
	if date.IsZero() {
		return DayView{}, fmt.Errorf("%w: %q", ErrNoDate, st.Selected)
	}
	m := grid.Build(date.Year(), date.Month(), grid.Deps{Events: c.reconciler, Location: c.loc}, c.now())
	for _, cell := range m.Cells {
		if cell.Key != st.Selected {
			continue
		}
		return DayView{
			Key:          cell.Key,
			Label:        grid.DayLabel(date),
			Events:       cell.Events,
			CanDeleteAll: len(c.store.EventsFor(cell.Key)) > 0,
			EditingID:    st.Editing,
			Holidays:     cell.Holidays,
			LunarLabel:   lunar.Label(cell.Lunar),
			State:        st,
		}, nil
	}
	// The 1st of the date's own month is always inside its grid.
	return DayView{}, fmt.Errorf("%w: %q", ErrNoDate, st.Selected)
}

// Submit adds a new event on the selected date, or edits st.Editing when
// it names an existing event. The attachment, when given, is read in full
// before the store is touched; a read failure leaves the store unchanged.
func (c *Commands) Submit(ctx context.Context, st State, sub Submission, img *Attachment) (State, model.UserEvent, error) {
	if st.Selected == "" {
		return st, model.UserEvent{}, ErrNoDate
	}

	sub = c.clean(sub)
	if err := c.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+":"+fe.Tag())
			}
			return st, model.UserEvent{}, fmt.Errorf("%w (%s)", ErrValidation, strings.Join(fields, ", "))
		}
		return st, model.UserEvent{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	imageData := ""
	if img != nil {
		data, err := ReadImage(ctx, *img)
		if err != nil {
			appLog.Warn("image attachment rejected", "date", st.Selected, "err", err)
			return st, model.UserEvent{}, err
		}
		imageData = data
	}

	now := c.now().UnixMilli()

	if st.Editing != "" && !c.catalog.IsRecurringID(st.Editing) {
		var updated model.UserEvent
		ok := c.store.UpdateEvent(st.Selected, st.Editing, func(ev *model.UserEvent) {
			ev.Category = model.Category(sub.Category)
			ev.Title = sub.Title
			ev.Notes = sub.Notes
			switch {
			case imageData != "":
				ev.ImageData = imageData
			case sub.RemoveImage:
				ev.ImageData = ""
			}
			ev.UpdatedAt = now
			updated = ev.Clone()
		})
		if ok {
			appLog.Info("event updated", "date", st.Selected, "id", st.Editing)
			st.Editing = ""
			return st, updated, nil
		}
		// The edited event vanished (deleted elsewhere); save as new.
	}

	ev := model.UserEvent{
		ID:        c.newID(),
		Category:  model.Category(sub.Category),
		Title:     sub.Title,
		Notes:     sub.Notes,
		ImageData: imageData,
		CreatedAt: now,
	}
	c.store.AddEvent(st.Selected, ev)
	appLog.Info("event added", "date", st.Selected, "id", ev.ID)
	st.Editing = ""
	return st, ev, nil
}

// Delete removes one user event from the selected date. Recurring ids are
// refused with ErrRecurring and never reach the store.
func (c *Commands) Delete(st State, id string) (State, error) {
	if st.Selected == "" {
		return st, ErrNoDate
	}
	if c.catalog.IsRecurringID(id) {
		return st, ErrRecurring
	}
	if c.store.DeleteEvent(st.Selected, id) {
		appLog.Info("event deleted", "date", st.Selected, "id", id)
	}
	if st.Editing == id {
		st.Editing = ""
	}
	return st, nil
}

// DeleteAll removes every user event on the selected date.
func (c *Commands) DeleteAll(st State) (State, error) {
	if st.Selected == "" {
		return st, ErrNoDate
	}
	if c.store.DeleteAll(st.Selected) {
		appLog.Info("all events deleted", "date", st.Selected)
	}
	st.Editing = ""
	return st, nil
}

// clean trims the form. Text is stored as typed; markup is only noted in
// the log since every renderer escapes it.
func (c *Commands) clean(sub Submission) Submission {
	sub.Category = strings.TrimSpace(sub.Category)
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Notes = strings.TrimSpace(sub.Notes)
	if c.hasMarkup(sub.Title) || c.hasMarkup(sub.Notes) {
		appLog.Debug("submission contains markup-like text", "category", sub.Category)
	}
	return sub
}

// hasMarkup reports whether s holds something the strict policy would strip.
func (c *Commands) hasMarkup(s string) bool {
	return html.UnescapeString(c.policy.Sanitize(s)) != s
}
