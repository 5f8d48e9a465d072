// Package metrics holds the Prometheus collectors for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bomgate"

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Request outcome label values
const (
	OutcomeOK            = "ok"
	OutcomeMissingSource = "missing_source"
	OutcomeNotFound      = "not_found"
	OutcomeError         = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests            *prometheus.CounterVec
	Acquisitions        *prometheus.CounterVec
	AcquisitionDuration *prometheus.HistogramVec
	Cleanups            *prometheus.CounterVec
	Publishes           *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sbom_requests_total",
			Help:      "SBOM requests by outcome.",
		}, []string{"outcome"}),
		Acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisitions_total",
			Help:      "Source acquisitions by strategy and result.",
		}, []string{"strategy", "result"}),
		AcquisitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquisition_duration_seconds",
			Help:      "Time spent materializing source trees.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"strategy"}),
		Cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_total",
			Help:      "Ephemeral source tree removals by result.",
		}, []string{"result"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "BOM uploads to the tracking server by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.Requests,
		m.Acquisitions,
		m.AcquisitionDuration,
		m.Cleanups,
		m.Publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts a finished request
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// ObserveAcquisition records one acquisition attempt
func (m *Metrics) ObserveAcquisition(strategy string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.Acquisitions.WithLabelValues(strategy, result(err)).Inc()
	m.AcquisitionDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}

// ObserveCleanup records one removal attempt
func (m *Metrics) ObserveCleanup(err error) {
	if m == nil {
		return
	}
	m.Cleanups.WithLabelValues(result(err)).Inc()
}

// ObservePublish records one upload attempt
func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	m.Publishes.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
