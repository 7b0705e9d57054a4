package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/session"
	"famcal/internal/store"
)

const (
	maxFormMemory = 8 << 20
	maxJSONBody   = 1 << 20
)

type pingResponse struct {
	OK              bool  `json:"ok"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{OK: true, ServerTimestamp: s.now().UnixMilli()})
}

// monthFromQuery reads ?year=&month=, defaulting to the configured start
// month (or the current one).
func (s *Server) monthFromQuery(r *http.Request) (int, time.Month, error) {
	defYear, defMonth := s.cfg.StartMonthOr(s.now().In(s.loc))
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), defYear)
	month := parseIntDefault(q.Get("month"), int(defMonth))
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month %d out of range", month)
	}
	if year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("year %d out of range", year)
	}
	return year, time.Month(month), nil
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.commands.Month(session.NewState(year, month)))
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Categories)
}

// dayState parses {date} and returns a state with that day open.
func (s *Server) dayState(w http.ResponseWriter, r *http.Request) (session.State, bool) {
	key, err := model.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return session.State{}, false
	}
	date := key.Time(s.loc)
	return session.NewState(date.Year(), date.Month()).Open(key), true
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	st, ok := s.dayState(w, r)
	if !ok {
		return
	}
	day, err := s.commands.Day(st)
	if err != nil {
		s.commandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	st, ok := s.dayState(w, r)
	if !ok {
		return
	}
	s.submit(w, r, st, http.StatusCreated)
}

func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	st, ok := s.dayState(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if s.catalog.IsRecurringID(id) {
		s.commandError(w, session.ErrRecurring)
		return
	}
	s.submit(w, r, st.StartEdit(id), http.StatusOK)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, st session.State, okStatus int) {
	sub, img, cleanup, err := readSubmission(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	_, ev, err := s.commands.Submit(r.Context(), st, sub, img)
	if err != nil {
		s.commandError(w, err)
		return
	}
	writeJSON(w, okStatus, ev)
}

// readSubmission accepts either a JSON body or a multipart form whose
// optional "image" part is the attachment.
func readSubmission(w http.ResponseWriter, r *http.Request) (session.Submission, *session.Attachment, func(), error) {
	noop := func() {}
	var sub session.Submission

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err := dec.Decode(&sub); err != nil {
			return sub, nil, noop, fmt.Errorf("invalid JSON body: %w", err)
		}
		return sub, nil, noop, nil
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return sub, nil, noop, fmt.Errorf("invalid form: %w", err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	sub.Category = r.FormValue("category")
	sub.Title = r.FormValue("title")
	sub.Notes = r.FormValue("notes")
	sub.RemoveImage, _ = strconv.ParseBool(r.FormValue("removeImage"))

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return sub, nil, cleanup, nil
	case err != nil:
		cleanup()
		return sub, nil, noop, fmt.Errorf("invalid image part: %w", err)
	}
	closeAll := func() {
		file.Close()
		cleanup()
	}
	return sub, &session.Attachment{Name: header.Filename, Reader: file}, closeAll, nil
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	st, ok := s.dayState(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !s.catalog.IsRecurringID(id) {
		if _, found := s.store.Find(st.Selected, id); !found {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
	}
	if _, err := s.commands.Delete(st, id); err != nil {
		s.commandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	st, ok := s.dayState(w, r)
	if !ok {
		return
	}
	if _, err := s.commands.DeleteAll(st); err != nil {
		s.commandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) commandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, session.ErrImageRead),
		errors.Is(err, session.ErrNoDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrRecurring):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		appLog.Error("command failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type shareResponse struct {
	Data string `json:"data"`
	URL  string `json:"url"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Share()
	if err != nil {
		appLog.Error("share encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode events")
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{
		Data: data,
		URL:  s.baseURL(r) + "/calendar?data=" + url.QueryEscape(data),
	})
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return strings.TrimRight(s.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	name := store.ExportFilename(s.now().In(s.loc))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if err := s.store.Export(w); err != nil {
		appLog.Error("export write failed", err)
	}
}

// uploadBody returns the "file" part of a multipart request, or the raw
// body otherwise.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, nil, err
	}
	return file, func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, nil
}

type importResponse struct {
	OK    bool `json:"ok"`
	Dates int  `json:"dates"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, cleanup, err := uploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer cleanup()

	if err := s.store.Import(body, s.cfg.ImportMaxBytes); err != nil {
		if errors.Is(err, store.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("import failed", err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, importResponse{OK: true, Dates: len(s.store.Dates())})
}

// icsRange is the window used for both feed export and ICS import.
func (s *Server) icsRange(years int) (time.Time, time.Time) {
	now := s.now().In(s.loc)
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(years, 0, 0)
}

func (s *Server) handleICSFeed(w http.ResponseWriter, r *http.Request) {
	years := min(max(parseIntDefault(r.URL.Query().Get("years"), s.cfg.ICSYears), 1), 10)
	from, to := s.icsRange(years)

	out, err := ics.Export(s.store.Serialize(), s.catalog, from, to, s.loc)
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar feed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": "family-calendar.ics"}))
	_, _ = io.WriteString(w, out)
}

type icsImportRequest struct {
	URL string `json:"url"`
}

type icsImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// handleImportICS merges VEVENTs as "etc" user events. The body is either
// raw ICS, a multipart "file", or JSON {"url": ...} naming a feed to fetch.
// Events already present on a day with the same title are skipped.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	raw, status, err := s.readICS(w, r)
	if err != nil {
		s.rec.RecordImport("ics", false)
		writeError(w, status, err.Error())
		return
	}

	from, to := s.icsRange(s.cfg.ICSYears)
	items, err := ics.Parse(raw, s.loc, from, to)
	if err != nil {
		s.rec.RecordImport("ics", false)
		writeError(w, http.StatusBadRequest, "invalid calendar: "+err.Error())
		return
	}

	var resp icsImportResponse
	for _, it := range items {
		if s.hasTitle(it.Key, it.Title) {
			resp.Skipped++
			continue
		}
		date := it.Key.Time(s.loc)
		st := session.NewState(date.Year(), date.Month()).Open(it.Key)
		sub := session.Submission{Category: string(model.CategoryEtc), Title: it.Title, Notes: it.Notes}
		if _, _, err := s.commands.Submit(r.Context(), st, sub, nil); err != nil {
			appLog.Debug("ics item skipped", "date", it.Key, "uid", it.UID, "err", err)
			resp.Skipped++
			continue
		}
		resp.Imported++
	}
	s.rec.RecordImport("ics", true)
	appLog.Info("ics imported", "imported", resp.Imported, "skipped", resp.Skipped)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readICS(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req icsImportRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
		}
		body, err := s.fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			return nil, http.StatusBadGateway, err
		}
		return body, 0, nil
	}

	body, cleanup, err := uploadBody(r)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err)
	}
	defer cleanup()
	raw, err := io.ReadAll(io.LimitReader(body, s.cfg.ImportMaxBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	if int64(len(raw)) > s.cfg.ImportMaxBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("calendar exceeds %d bytes", s.cfg.ImportMaxBytes)
	}
	return raw, 0, nil
}

func (s *Server) hasTitle(key model.DateKey, title string) bool {
	title = strings.TrimSpace(title)
	for _, ev := range s.store.EventsFor(key) {
		if ev.Title == title {
			return true
		}
	}
	return false
}
