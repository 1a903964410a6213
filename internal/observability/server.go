package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CLIMetrics mirrors a subset of BacktestMetrics as real client_golang
// collectors, so a CLI run can be scraped by an ordinary Prometheus server
// at /metrics in addition to the hand-rolled Registry used internally.
type CLIMetrics struct {
	RunsTotal   prometheus.Counter
	RunDuration prometheus.Histogram
	FinalEquity prometheus.Gauge
	HaltedRuns  prometheus.Counter
}

// NewCLIMetrics constructs and registers CLIMetrics on a fresh registry.
func NewCLIMetrics() (*CLIMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &CLIMetrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtester_cli_runs_total",
			Help: "Total backtest runs executed by this process.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtester_cli_run_duration_seconds",
			Help:    "Wall-clock duration of a single backtest run.",
			Buckets: prometheus.DefBuckets,
		}),
		FinalEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtester_cli_final_equity",
			Help: "Final equity of the most recently completed run.",
		}),
		HaltedRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtester_cli_halted_runs_total",
			Help: "Total runs that ended with trading_halted=true.",
		}),
	}
	reg.MustRegister(m.RunsTotal, m.RunDuration, m.FinalEquity, m.HaltedRuns)
	return m, reg
}

// Server serves Prometheus metrics for a CLI process: the client_golang
// registry at /metrics, and the in-process hand-rolled Registry (used by
// the engine driver for fine-grained per-symbol counters) at
// /metrics/internal.
type Server struct {
	httpServer *http.Server
}

// NewServer starts listening on addr in the background. Call Shutdown to
// stop it. addr of "" disables the server (returns nil, nil).
func NewServer(addr string, promReg *prometheus.Registry, internalReg *Registry) (*Server, error) {
	if addr == "" {
		return nil, nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/metrics/internal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		internalReg.WriteText(w)
	})

	httpServer := &http.Server{Addr: addr, Handler: mux}
	s := &Server{httpServer: httpServer}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			LogEvent(context.Background(), "error", "metrics_server_failed", map[string]any{"error": err.Error()})
		}
	}()
	return s, nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
