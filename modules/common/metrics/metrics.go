package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "influencia"

// Metrics - 서버 Prometheus 수집기 묶음
// nil 수신자도 안전하게 호출 가능 (메트릭 비활성)
type Metrics struct {
	registry *prometheus.Registry

	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	workflowRejections *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	wsClients          prometheus.Gauge
	snapshotsPublished *prometheus.CounterVec
}

// New - 전용 레지스트리에 수집기 등록
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		generationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Total number of generative service calls",
			},
			[]string{"operation", "outcome"}, // outcome: success, error, rate_limited, empty
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of generative service calls in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"operation"},
		),
		workflowRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_rejections_total",
				Help:      "Workflow actions rejected before reaching the service",
			},
			[]string{"action", "reason"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of studio sessions held in memory",
			},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected websocket clients",
			},
		),
		snapshotsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_published_total",
				Help:      "Session snapshots fanned out, by sink",
			},
			[]string{"sink", "status"}, // sink: websocket, redis
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generationRequests,
		m.generationDuration,
		m.workflowRejections,
		m.activeSessions,
		m.wsClients,
		m.snapshotsPublished,
	)
	return m
}

// Handler - /metrics 노출 핸들러
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry - 테스트/추가 등록용
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveGeneration(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationRequests.WithLabelValues(operation, outcome).Inc()
	m.generationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) WorkflowRejected(action, reason string) {
	if m == nil {
		return
	}
	m.workflowRejections.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}

func (m *Metrics) SnapshotPublished(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.snapshotsPublished.WithLabelValues(sink, status).Inc()
}
