package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts grid activity. A nil *Collector is valid and records nothing.
type Collector struct {
	registry   *prometheus.Registry
	commits    *prometheus.CounterVec
	failures   *prometheus.CounterVec
	superseded *prometheus.CounterVec
	rows       *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergrid",
			Name:      "commits_total",
			Help:      "Successful writes by kind (single, bulk, drag_fill, suggestion, similar, archive).",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergrid",
			Name:      "failures_total",
			Help:      "Backend failures by operation.",
		}, []string{"op"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergrid",
			Name:      "superseded_responses_total",
			Help:      "Responses discarded because a newer operation took over.",
		}, []string{"kind"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergrid",
			Name:      "rows_written_total",
			Help:      "Rows touched by successful writes.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(c.commits, c.failures, c.superseded, c.rows)
	return c
}

// Commit records one successful write that touched n rows.
func (c *Collector) Commit(kind string, n int) {
	if c == nil {
		return
	}
	c.commits.WithLabelValues(kind).Inc()
	if n > 0 {
		c.rows.WithLabelValues(kind).Add(float64(n))
	}
}

func (c *Collector) Failure(op string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(op).Inc()
}

func (c *Collector) Superseded(kind string) {
	if c == nil {
		return
	}
	c.superseded.WithLabelValues(kind).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
