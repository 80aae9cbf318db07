// Package metrics exposes daemon counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "boss"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	aiRequests  *prometheus.CounterVec
	aiRetries   *prometheus.CounterVec
	aiFallbacks prometheus.Counter
	messages    *prometheus.CounterVec
	calls       *prometheus.CounterVec
	callActive  prometheus.Gauge
	storyViews  prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ai_requests_total",
			Help: "AI bridge requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		aiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ai_retries_total",
			Help: "Retries after transient AI failures.",
		}, []string{"op"}),
		aiFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ai_fallbacks_total",
			Help: "Streamed replies replaced by the fallback fragment.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total",
			Help: "Messages added to conversations by sender.",
		}, []string{"sender"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_total",
			Help: "Calls started by kind.",
		}, []string{"kind"}),
		callActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "call_active",
			Help: "1 while a call session is active.",
		}),
		storyViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "story_views_total",
			Help: "Stories opened in the viewer.",
		}),
	}
	reg.MustRegister(
		m.aiRequests, m.aiRetries, m.aiFallbacks,
		m.messages, m.calls, m.callActive, m.storyViews,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchDrops exports a counter read from drops at scrape time, e.g. the
// event bus loss count.
func (m *Metrics) WatchDrops(drops func() uint64) {
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "bus_dropped_total",
		Help: "Events lost because a subscriber buffer was full.",
	}, func() float64 { return float64(drops()) }))
}

// ObserveRequest counts one finished AI request.
func (m *Metrics) ObserveRequest(op, outcome string) {
	m.aiRequests.WithLabelValues(op, outcome).Inc()
}

// ObserveRetry counts one retry.
func (m *Metrics) ObserveRetry(op string) { m.aiRetries.WithLabelValues(op).Inc() }

// ObserveFallback counts one fallback reply.
func (m *Metrics) ObserveFallback() { m.aiFallbacks.Inc() }

// MessageAdded counts a new message.
func (m *Metrics) MessageAdded(sender string) { m.messages.WithLabelValues(sender).Inc() }

// CallStarted counts a call and marks it active.
func (m *Metrics) CallStarted(kind string) {
	m.calls.WithLabelValues(kind).Inc()
	m.callActive.Set(1)
}

// CallEnded clears the active gauge.
func (m *Metrics) CallEnded() { m.callActive.Set(0) }

// StoryViewed counts a story view.
func (m *Metrics) StoryViewed() { m.storyViews.Inc() }

// Server serves /metrics over HTTP.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server for addr. An empty addr yields a
// server whose Start and Stop do nothing.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return &Server{
		addr:   addr,
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger.Named("metrics"),
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	if s.addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
