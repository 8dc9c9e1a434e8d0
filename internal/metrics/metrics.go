package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters and histograms for the portal.
type Metrics struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	activeCaptures  prometheus.Gauge
	activeWidgets   prometheus.Gauge
	chatMessages    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultancy",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests sent to the booking backend",
		}, []string{"operation", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultancy",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of booking backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		activeCaptures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "consultancy",
			Subsystem: "chat",
			Name:      "active_captures",
			Help:      "Voice recordings currently held open",
		}),
		activeWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "consultancy",
			Subsystem: "chat",
			Name:      "widgets_active",
			Help:      "Chat widgets mounted for live sessions",
		}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultancy",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages relayed to the backend",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.backendRequests, m.backendLatency, m.activeCaptures, m.activeWidgets, m.chatMessages)
	return m
}

func (m *Metrics) ObserveBackend(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(operation, outcome).Inc()
	m.backendLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) CaptureOpened() {
	if m == nil {
		return
	}
	m.activeCaptures.Inc()
}

func (m *Metrics) CaptureReleased() {
	if m == nil {
		return
	}
	m.activeCaptures.Dec()
}

func (m *Metrics) SetActiveWidgets(n int) {
	if m == nil {
		return
	}
	m.activeWidgets.Set(float64(n))
}

func (m *Metrics) ObserveChatMessage(kind, outcome string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(kind, outcome).Inc()
}
