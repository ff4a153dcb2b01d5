package pebblestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// PromMetrics exports storage observations as Prometheus collectors.
type PromMetrics struct {
	readSeconds   prometheus.Histogram
	readBytes     prometheus.Counter
	commitSeconds prometheus.Histogram
	commitOps     prometheus.Counter
	commitBytes   prometheus.Counter
}

// NewPromMetrics builds the collectors and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer) (*PromMetrics, error) {
	m := &PromMetrics{
		readSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "peerchan",
			Subsystem: "store",
			Name:      "read_seconds",
			Help:      "Latency of point reads.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "store",
			Name:      "read_bytes_total",
			Help:      "Bytes returned by point reads.",
		}),
		commitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "peerchan",
			Subsystem: "store",
			Name:      "commit_seconds",
			Help:      "Latency of transaction commits.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		commitOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "store",
			Name:      "commit_ops_total",
			Help:      "Key operations committed.",
		}),
		commitBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerchan",
			Subsystem: "store",
			Name:      "commit_bytes_total",
			Help:      "Encoded batch bytes committed.",
		}),
	}
	for _, c := range []prometheus.Collector{m.readSeconds, m.readBytes, m.commitSeconds, m.commitOps, m.commitBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.readSeconds.Observe(elapsed.Seconds())
	m.readBytes.Add(float64(bytes))
}

func (m *PromMetrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.commitSeconds.Observe(elapsed.Seconds())
	m.commitOps.Add(float64(numOps))
	m.commitBytes.Add(float64(bytes))
}
