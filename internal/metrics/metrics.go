// Package metrics exposes a debug/metrics HTTP mux bound to the config's
// listen_address:listen_port (§6), the one place those fields are
// exercised.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

// Collector holds the counters/histograms the REPL and provider adapters
// report into.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	StreamDurations *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec
}

// NewCollector registers every metric against its own registry (never the
// global default, so repeated test construction doesn't panic on
// duplicate registration).
func NewCollector() (*Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	c := &Collector{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ikigai_provider_requests_total",
			Help: "LLM provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		StreamDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ikigai_stream_duration_seconds",
			Help:    "Wall-clock duration of a streamed provider response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ikigai_tool_calls_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
	}

	reg.MustRegister(c.RequestsTotal, c.StreamDurations, c.ToolCallsTotal)
	return c, reg
}

// Server is the debug/metrics HTTP server bound to listen_address:port.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the chi router exposing /healthz and /metrics.
func NewServer(address string, port int, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", address, port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens in the background. Callers should check the returned
// error channel for an early bind failure.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- ikerr.Wrap(err, ikerr.IO, "metrics server failed").Err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
