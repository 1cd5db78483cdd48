// Package metrics collects sync pass statistics and pushes them to a Prometheus Pushgateway.
//
// A sync pass is a short-lived batch job, so nothing is scraped: the caller pushes the
// registry once the pass ends, successful or not.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "skyanki"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	WordsListed  prometheus.Gauge
	WordsNew     prometheus.Gauge
	NotesAdded   prometheus.Gauge
	NotesSkipped prometheus.Gauge
	Duration     prometheus.Gauge
	Success      prometheus.Gauge
	LastSuccess  prometheus.Gauge

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "sync", Name: name, Help: help})
	}

	m := &Metrics{
		registry:     prometheus.NewRegistry(),
		WordsListed:  gauge("words_listed", "Words listed across all word-sets in the last pass."),
		WordsNew:     gauge("words_new", "Words created after the watermark in the last pass."),
		NotesAdded:   gauge("notes_added", "Notes added to Anki in the last pass."),
		NotesSkipped: gauge("notes_skipped", "Notes skipped as duplicates or already exported in the last pass."),
		Duration:     gauge("duration_seconds", "Duration of the last pass."),
		Success:      gauge("success", "1 if the last pass succeeded, 0 otherwise."),
		LastSuccess:  gauge("last_success_timestamp_seconds", "Unix time of the last successful pass."),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Outgoing HTTP requests by status code and method.",
		}, []string{"code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Outgoing HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.WordsListed, m.WordsNew, m.NotesAdded, m.NotesSkipped,
		m.Duration, m.Success, m.LastSuccess,
		m.requests, m.latency,
	)
	return m
}

// InstrumentClient returns a copy of client whose requests are counted and timed.
// A nil client instruments [http.DefaultTransport].
func (m *Metrics) InstrumentClient(client *http.Client) *http.Client {
	var c http.Client
	if client != nil {
		c = *client
	}

	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c.Transport = promhttp.InstrumentRoundTripperCounter(m.requests,
		promhttp.InstrumentRoundTripperDuration(m.latency, base))
	return &c
}

// Push replaces the metrics of job on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
