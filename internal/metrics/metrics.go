// Package metrics exposes Prometheus counters for store activity.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the store, importers and HTTP layer report into.
type Recorder interface {
	RecordMutation(op string)
	RecordPersistFailure(op string)
	RecordImport(source string, ok bool)
	RecordHTTPStatus(statusCode int)
}

// Nop discards everything. It is the default for packages used without a
// registry (tests, one-shot CLI runs).
type Nop struct{}

func (Nop) RecordMutation(string)       {}
func (Nop) RecordPersistFailure(string) {}
func (Nop) RecordImport(string, bool)   {}
func (Nop) RecordHTTPStatus(int)        {}

// Collector implements Recorder on Prometheus metrics.
type Collector struct {
	mutations      *prometheus.CounterVec
	persistFailure *prometheus.CounterVec
	imports        *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	storedDates    prometheus.Gauge
}

// NewCollector registers the famcal metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famcal_store_mutations_total",
			Help: "Event store mutations by operation.",
		}, []string{"op"}),
		persistFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famcal_store_persist_failures_total",
			Help: "Durable storage read/write failures by operation.",
		}, []string{"op"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famcal_imports_total",
			Help: "Store imports by source and result.",
		}, []string{"source", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "famcal_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		storedDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "famcal_store_dates",
			Help: "Number of dates holding at least one user event.",
		}),
	}

	reg.MustRegister(
		c.mutations,
		c.persistFailure,
		c.imports,
		c.httpStatus,
		c.storedDates,
	)

	return c
}

func (c *Collector) RecordMutation(op string) {
	c.mutations.WithLabelValues(op).Inc()
}

func (c *Collector) RecordPersistFailure(op string) {
	c.persistFailure.WithLabelValues(op).Inc()
}

func (c *Collector) RecordImport(source string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	c.imports.WithLabelValues(source, result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetStoredDates updates the gauge; the store calls it after each save.
func (c *Collector) SetStoredDates(n int) {
	c.storedDates.Set(float64(n))
}

// Handler serves the registry for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
