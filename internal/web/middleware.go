package web

import (
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	appLog "famcal/internal/log"
)

// statusRecorder wraps http.ResponseWriter to remember the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// observe logs every request and counts its status code.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.rec.RecordHTTPStatus(rec.statusCode)
		kv := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000,
		}
		switch {
		case rec.statusCode >= 500:
			appLog.Warn("http request failed", kv...)
		case rec.statusCode >= 400:
			appLog.Info("http request rejected", kv...)
		default:
			appLog.Debug("http request", kv...)
		}
	})
}

// recoverer turns a handler panic into a 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				appLog.Warn("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// throttle applies the shared bulk-operation limiter.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.bulk.Allow() {
			appLog.Warn("rate limit exceeded", "path", r.URL.Path)
			writeRateLimitResponse(w, float64(s.bulk.Limit()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimitResponse writes a 429 with Retry-After set to the time one
// token takes to refill.
func writeRateLimitResponse(w http.ResponseWriter, perSecond float64) {
	retryAfterSec := 1
	if perSecond > 0 {
		retryAfterSec = max(1, int(math.Ceil(1.0/perSecond)))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	writeError(w, http.StatusTooManyRequests, "too many requests, retry later")
}
