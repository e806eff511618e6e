// Package metrics exposes Prometheus counters for fetch and upload jobs.
//
// A nil *Metrics is valid and records nothing, so callers that do not care
// about metrics can pass nil.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeCached  = "cached"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors for one run.
type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts  prometheus.Counter
	FetchResults   *prometheus.CounterVec
	FetchedBytes   prometheus.Counter
	UploadAttempts prometheus.Counter
	UploadResults  *prometheus.CounterVec
	UploadedBytes  prometheus.Counter
	InFlight       *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "fetch_attempts_total",
			Help:      "Network fetch attempts, including retries.",
		}),
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "fetch_results_total",
			Help:      "Resolved fetch jobs by outcome.",
		}, []string{"outcome"}),
		FetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "fetched_bytes_total",
			Help:      "Bytes written to the destination directory.",
		}),
		UploadAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "upload_attempts_total",
			Help:      "Object store upload attempts, including retries.",
		}),
		UploadResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "upload_results_total",
			Help:      "Resolved upload jobs by outcome.",
		}, []string{"outcome"}),
		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tlcfetch",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to the object store.",
		}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tlcfetch",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently executing, by phase.",
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		m.FetchAttempts,
		m.FetchResults,
		m.FetchedBytes,
		m.UploadAttempts,
		m.UploadResults,
		m.UploadedBytes,
		m.InFlight,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FetchAttempt() {
	if m != nil {
		m.FetchAttempts.Inc()
	}
}

func (m *Metrics) FetchResult(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.FetchResults.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.FetchedBytes.Add(float64(bytes))
	}
}

func (m *Metrics) UploadAttempt() {
	if m != nil {
		m.UploadAttempts.Inc()
	}
}

func (m *Metrics) UploadResult(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.UploadResults.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.UploadedBytes.Add(float64(bytes))
	}
}

// Track increments the in-flight gauge for phase and returns a func that
// decrements it.
func (m *Metrics) Track(phase string) func() {
	if m == nil {
		return func() {}
	}
	g := m.InFlight.WithLabelValues(phase)
	g.Inc()
	return g.Dec
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
