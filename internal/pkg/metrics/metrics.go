// Package metrics owns the Prometheus collectors of the attendance service.
// Every method is safe on a nil *Metrics so callers can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	registry        *prometheus.Registry
	checkIns        *prometheus.CounterVec
	checkOuts       *prometheus.CounterVec
	validations     *prometheus.CounterVec
	staleOpen       prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
}

// New registers the attendance collectors plus the Go and process collectors
// on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_check_ins_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"result"}),
		checkOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_check_outs_total",
			Help: "Check-out attempts by outcome.",
		}, []string{"result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_validations_total",
			Help: "Eligibility checks by kind and verdict.",
		}, []string{"kind", "allowed"}),
		staleOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_stale_open_records",
			Help: "Open attendance records from previous days.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_events_published_total",
			Help: "Attendance events handed to the event pipeline.",
		}, []string{"type", "result"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_events_processed_total",
			Help: "Attendance events processed by the worker, after retries.",
		}, []string{"type", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.checkIns,
		m.checkOuts,
		m.validations,
		m.staleOpen,
		m.httpDuration,
		m.eventsPublished,
		m.eventsHandled,
	)

	return m
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func (m *Metrics) CheckIn(err error) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) CheckOut(err error) {
	if m == nil {
		return
	}
	m.checkOuts.WithLabelValues(result(err)).Inc()
}

// Validation counts a validate-check-in or validate-check-out verdict
func (m *Metrics) Validation(kind string, allowed bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(kind, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) SetStaleOpenRecords(n int) {
	if m == nil {
		return
	}
	m.staleOpen.Set(float64(n))
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

func (m *Metrics) EventProcessed(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsHandled.WithLabelValues(eventType, result(err)).Inc()
}

// Middleware observes request latency labelled by the chi route pattern, so
// /attendance/{id} stays one series regardless of the ID.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
