// Package metrics exposes prometheus instruments for the swap flow.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Result labels
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultMismatch = "recipient_mismatch"
	ResultSkipped  = "skipped"
	ResultTimeout  = "timeout"
)

// Metrics holds the swap flow instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	quoteFetches      *prometheus.CounterVec
	quoteLatency      prometheus.Histogram
	approvals         *prometheus.CounterVec
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	txSubmitted       prometheus.Counter
}

// New creates and registers the instruments on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quoteFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moleswap_quote_fetches_total",
				Help: "Quote fetches by result",
			},
			[]string{"result"},
		),
		quoteLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "moleswap_quote_fetch_duration_seconds",
				Help:    "Quote fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		approvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moleswap_approvals_total",
				Help: "Approval gate outcomes",
			},
			[]string{"result"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moleswap_executions_total",
				Help: "Swap executions by terminal state",
			},
			[]string{"result"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moleswap_execution_duration_seconds",
				Help:    "Swap execution duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		),
		txSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "moleswap_transactions_submitted_total",
				Help: "Transactions observed during executions",
			},
		),
	}

	m.registry.MustRegister(
		m.quoteFetches,
		m.quoteLatency,
		m.approvals,
		m.executions,
		m.executionDuration,
		m.txSubmitted,
	)
	return m
}

// Registry returns the registry holding the instruments
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveQuote(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.quoteFetches.WithLabelValues(result).Inc()
	m.quoteLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveApproval(result string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExecution(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(result).Inc()
	m.executionDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) AddTransactions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.txSubmitted.Add(float64(n))
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}()

	logger.WithField("addr", addr).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
