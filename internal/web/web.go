package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/metrics"
	"famcal/internal/recurring"
	"famcal/internal/session"
	"famcal/internal/store"
)

// Deps are the collaborators a Server needs. Config and Store are
// required; the rest default.
type Deps struct {
	Config  *config.Config
	Store   *store.Store
	Catalog *recurring.Catalog

	// Metrics receives HTTP status counts; Gatherer serves /metrics.
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer

	// Fetcher downloads ICS URLs for /api/import/ics.
	Fetcher *ics.Fetcher

	// BulkLimit throttles whole-store operations (import, share bootstrap).
	BulkLimit rate.Limit
	BulkBurst int

	Now   func() time.Time
	Debug bool
}

// Server provides the calendar page and its JSON API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	catalog  *recurring.Catalog
	commands *session.Commands
	rec      metrics.Recorder
	gatherer prometheus.Gatherer
	fetcher  *ics.Fetcher
	bulk     *rate.Limiter
	loc      *time.Location
	now      func() time.Time
	debug    bool

	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	if d.Catalog == nil {
		d.Catalog = recurring.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Fetcher == nil {
		d.Fetcher = ics.NewFetcher(nil, d.Config.ImportMaxBytes)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BulkLimit == 0 {
		d.BulkLimit = rate.Every(2 * time.Second)
	}
	if d.BulkBurst <= 0 {
		d.BulkBurst = 5
	}

	loc := d.Config.Location()
	s := &Server{
		cfg:      d.Config,
		store:    d.Store,
		catalog:  d.Catalog,
		rec:      d.Metrics,
		gatherer: d.Gatherer,
		fetcher:  d.Fetcher,
		bulk:     rate.NewLimiter(d.BulkLimit, d.BulkBurst),
		loc:      loc,
		now:      d.Now,
		debug:    d.Debug,
		commands: session.NewCommands(d.Store, d.Catalog,
			session.WithLocation(loc),
			session.WithClock(d.Now),
		),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
	r.Get("/calendar", s.handleCalendarPage)
	r.Get("/calendar.ics", s.handleICSFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/calendar", s.handleMonth)
		r.Get("/categories", s.handleCategories)
		r.Get("/share", s.handleShare)
		r.Get("/export", s.handleExport)
		r.With(s.throttle).Post("/import", s.handleImport)
		r.With(s.throttle).Post("/import/ics", s.handleImportICS)

		r.Route("/dates/{date}/events", func(r chi.Router) {
			r.Get("/", s.handleDay)
			r.Post("/", s.handleAddEvent)
			r.Delete("/", s.handleDeleteAll)
			r.Put("/{id}", s.handleEditEvent)
			r.Delete("/{id}", s.handleDeleteEvent)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
