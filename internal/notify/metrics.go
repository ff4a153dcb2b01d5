package notify

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts notification traffic. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	published   prometheus.Counter
	dropped     *prometheus.CounterVec
	delivered   prometheus.Counter
	subscribers prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "notify",
			Name:      "published_total",
			Help:      "Events accepted onto the publish queue.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Events dropped because a queue was full.",
		}, []string{"stage"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Frames written to subscribers.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerchan",
			Subsystem: "notify",
			Name:      "subscribers",
			Help:      "Connected subscribers.",
		}),
	}
	for _, c := range []prometheus.Collector{m.published, m.dropped, m.delivered, m.subscribers} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) incPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) incDropped(stage string) {
	if m != nil {
		m.dropped.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) incDelivered() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *Metrics) addSubscribers(d float64) {
	if m != nil {
		m.subscribers.Add(d)
	}
}
