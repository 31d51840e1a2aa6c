package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/citenet/internal/model"
)

const namespace = "citenet"

// Metrics holds the crawl metrics.
type Metrics struct {
	registry *prometheus.Registry

	Fetches         *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	FetchRetries    prometheus.Counter
	Entries         *prometheus.CounterVec
	Publications    *prometheus.CounterVec
	Edges           prometheus.Counter
	Conflicts       prometheus.Counter
	StorageFailures prometheus.Counter
	Frontier        prometheus.Gauge
	State           *prometheus.GaugeVec
	Stops           *prometheus.CounterVec
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Finished page fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page fetches including retries and backoff.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Requests repeated after a throttled or transient failure.",
		}),
		Entries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frontier_entries_finished_total",
			Help:      "Frontier entries finished by status.",
		}, []string{"status"}),
		Publications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_resolved_total",
			Help:      "Resolved records by result: a new publication or a merge into an existing one.",
		}, []string{"result"}),
		Edges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "Citation edges stored.",
		}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_conflicts_total",
			Help:      "Records that matched several existing publications.",
		}),
		StorageFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Failed graph store writes.",
		}),
		Frontier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_pending",
			Help:      "Frontier entries waiting to be expanded.",
		}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawl_state",
			Help:      "Current crawl state; the active state is 1.",
		}, []string{"state"}),
		Stops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_stops_total",
			Help:      "Runs that left the expanding state, by reason.",
		}, []string{"reason"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFetch implements fetcher.Recorder.
func (m *Metrics) RecordFetch(_ context.Context, rec model.FetchRecord) {
	m.Fetches.WithLabelValues(rec.Outcome).Inc()
	m.FetchDuration.Observe(rec.Duration.Seconds())
	if rec.Attempts > 1 {
		m.FetchRetries.Add(float64(rec.Attempts - 1))
	}
}

// StateChanged implements crawler.Observer.
func (m *Metrics) StateChanged(s model.State) {
	for st := model.StateIdle; st <= model.StateSuspended; st++ {
		v := 0.0
		if st == s {
			v = 1
		}
		m.State.WithLabelValues(st.String()).Set(v)
	}
}

// EntryFinished implements crawler.Observer.
func (m *Metrics) EntryFinished(status string) {
	m.Entries.WithLabelValues(status).Inc()
}

// JobFinished implements crawler.Observer.
func (m *Metrics) JobFinished(stats model.RunStats) {
	m.Publications.WithLabelValues("new").Add(float64(stats.NewPublications))
	m.Publications.WithLabelValues("merged").Add(float64(stats.MergedRecords))
	m.Edges.Add(float64(stats.Edges))
	m.Conflicts.Add(float64(stats.Conflicts))
	m.StorageFailures.Add(float64(stats.StorageFailures))
}

// FrontierSize implements crawler.Observer.
func (m *Metrics) FrontierSize(n int) {
	m.Frontier.Set(float64(n))
}

// Stopped implements crawler.Observer.
func (m *Metrics) Stopped(reason model.StopReason) {
	m.Stops.WithLabelValues(reason.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
