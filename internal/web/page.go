package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"famcal/internal/grid"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"imageSrc": imageSrc,
}).ParseFS(templateFS, "templates/calendar.html"))

// imageSrc trusts only image data URIs; anything else renders as nothing.
func imageSrc(s string) template.URL {
	if strings.HasPrefix(s, "data:image/") && !strings.ContainsAny(s, "\"'<> ") {
		return template.URL(s)
	}
	return ""
}

type pageData struct {
	Month      grid.Month
	Prev       session.State
	Next       session.State
	Day        *session.DayView
	Categories []model.CategoryInfo
	Notice     string
}

// handleCalendarPage renders the month view. ?data= carries a share
// payload: a valid one replaces the store and redirects to the clean URL;
// an invalid one is ignored. ?date= opens that day's panel.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notice := ""
	if data := q.Get("data"); data != "" {
		if !s.bulk.Allow() {
			writeRateLimitResponse(w, float64(s.bulk.Limit()))
			return
		}
		if err := s.store.LoadShare(data); err == nil {
			http.Redirect(w, r, "/calendar", http.StatusSeeOther)
			return
		}
		notice = "공유 링크를 읽을 수 없어 저장된 일정을 표시합니다."
	}

	year, month, err := s.monthFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st := session.NewState(year, month)
	data := pageData{
		Month:      s.commands.Month(st),
		Prev:       st.ChangeMonth(-1),
		Next:       st.ChangeMonth(1),
		Categories: model.Categories,
		Notice:     notice,
	}

	if raw := q.Get("date"); raw != "" {
		key, err := model.ParseDateKey(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		day, err := s.commands.Day(st.Open(key))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data.Day = &day
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
