package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Metrics holds the gateway collectors. Create one per registry.
type Metrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prepdeck_gateway_operation_duration_seconds",
				Help:    "Time spent in persistence gateway operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepdeck_gateway_errors_total",
				Help: "Failed persistence gateway operations",
			},
			[]string{"op"},
		),
	}
}

// MetricsGateway is a decorator that records latency and failures of every
// operation and logs failures.
type MetricsGateway struct {
	inner   Gateway
	metrics *Metrics
	log     logrus.FieldLogger
}

// WithMetrics wraps a Gateway with instrumentation.
func WithMetrics(g Gateway, m *Metrics, log logrus.FieldLogger) Gateway {
	return &MetricsGateway{inner: g, metrics: m, log: log}
}

func (m *MetricsGateway) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	start := time.Now()
	v, err := m.inner.Get(ctx, userID, recordType)
	m.observe("get", userID, recordType, start, err)
	return v, err
}

func (m *MetricsGateway) Set(ctx context.Context, userID, recordType string, value []byte) error {
	start := time.Now()
	err := m.inner.Set(ctx, userID, recordType, value)
	m.observe("set", userID, recordType, start, err)
	return err
}

func (m *MetricsGateway) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	start := time.Now()
	v, err := m.inner.Keys(ctx, userID, prefix)
	m.observe("keys", userID, prefix, start, err)
	return v, err
}

func (m *MetricsGateway) observe(op, userID, key string, start time.Time, err error) {
	m.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	// Misses are ordinary reads, not failures.
	if err == nil || errors.Is(err, ErrNotFound) {
		return
	}
	m.metrics.failures.WithLabelValues(op).Inc()
	m.log.WithFields(logrus.Fields{
		"op":      op,
		"user_id": userID,
		"key":     key,
	}).WithError(err).Warn("gateway operation failed")
}
