package eventpub

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting publish metrics
type MetricsCollector interface {
	RecordPublish(transport string, status int, success bool, duration time.Duration)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordPublish(transport string, status int, success bool, duration time.Duration) {
}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publisher_messages_total",
			Help: "Events handed to the queue service, by outcome.",
		}, []string{"transport", "status", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_publisher_publish_duration_seconds",
			Help:    "Time spent in a single publish call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
	}

	for _, c := range []prometheus.Collector{m.messages, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordPublish(transport string, status int, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.messages.WithLabelValues(transport, strconv.Itoa(status), result).Inc()
	m.duration.WithLabelValues(transport).Observe(duration.Seconds())
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	transport string
	metrics   MetricsCollector
	clock     clockwork.Clock
}

func NewMetricPublisher(publisher Publisher, transport string, metrics MetricsCollector, clock clockwork.Clock) *MetricPublisher {
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricPublisher{
		publisher: publisher,
		transport: transport,
		metrics:   metrics,
		clock:     clock,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event Event) (*Receipt, error) {
	start := p.clock.Now()

	receipt, err := p.publisher.Publish(ctx, event)

	p.metrics.RecordPublish(p.transport, event.Status, err == nil, p.clock.Since(start))
	return receipt, err
}

func (p *MetricPublisher) Close() error {
	return p.publisher.Close()
}
