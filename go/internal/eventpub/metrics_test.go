package eventpub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPublisher advances the fake clock to simulate a slow send.
type stubPublisher struct {
	clock   *clockwork.FakeClock
	delay   time.Duration
	receipt *Receipt
	err     error
	closed  bool
}

func (s *stubPublisher) Publish(ctx context.Context, event Event) (*Receipt, error) {
	s.clock.Advance(s.delay)
	return s.receipt, s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

type recordingCollector struct {
	transport string
	status    int
	success   bool
	duration  time.Duration
	calls     int
}

func (r *recordingCollector) RecordPublish(transport string, status int, success bool, duration time.Duration) {
	r.transport = transport
	r.status = status
	r.success = success
	r.duration = duration
	r.calls++
}

func TestMetricPublisher_RecordsSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	receipt := &Receipt{Transport: TransportSQS, MessageID: "abc-123"}
	inner := &stubPublisher{clock: clock, delay: 150 * time.Millisecond, receipt: receipt}
	rec := &recordingCollector{}
	pub := NewMetricPublisher(inner, TransportSQS, rec, clock)

	got, err := pub.Publish(context.Background(), NewEvent(201))
	require.NoError(t, err)

	assert.Same(t, receipt, got)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, TransportSQS, rec.transport)
	assert.Equal(t, 201, rec.status)
	assert.True(t, rec.success)
	assert.Equal(t, 150*time.Millisecond, rec.duration)
}

func TestMetricPublisher_ErrorPassesThrough(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sendErr := errors.New("RequestError: send request failed")
	inner := &stubPublisher{clock: clock, err: sendErr}
	rec := &recordingCollector{}
	pub := NewMetricPublisher(inner, TransportSQS, rec, clock)

	got, err := pub.Publish(context.Background(), NewEvent(DefaultStatus))
	assert.Nil(t, got)
	assert.Equal(t, sendErr, err)
	assert.False(t, rec.success)

	require.NoError(t, pub.Close())
	assert.True(t, inner.closed)
}

func TestPrometheusMetrics_RecordPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	m.RecordPublish(TransportSQS, 200, true, 20*time.Millisecond)
	m.RecordPublish(TransportSQS, 200, true, 30*time.Millisecond)
	m.RecordPublish(TransportSQS, 200, false, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues(TransportSQS, "200", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues(TransportSQS, "200", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewPrometheusMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMetrics(reg)
	assert.Error(t, err)
}

func TestNewMetricPublisher_Defaults(t *testing.T) {
	inner := &stubPublisher{clock: clockwork.NewFakeClock(), receipt: &Receipt{}}
	pub := NewMetricPublisher(inner, TransportSQS, nil, nil)

	_, err := pub.Publish(context.Background(), NewEvent(DefaultStatus))
	assert.NoError(t, err)
}
