package eventpub

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJetStream struct {
	publishMsgFunc func(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)

	msgs []*nats.Msg
}

func (m *mockJetStream) PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.msgs = append(m.msgs, msg)
	return m.publishMsgFunc(ctx, msg, opts...)
}

func TestJetStreamPublisher_Publish(t *testing.T) {
	ack := &jetstream.PubAck{Stream: "EVENT_COLLECTOR", Sequence: 42}
	mock := &mockJetStream{
		publishMsgFunc: func(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
			assert.Len(t, opts, 2)
			return ack, nil
		},
	}
	pub := &JetStreamPublisher{js: mock, config: DefaultJetStreamConfig()}
	event := NewEvent(DefaultStatus)

	receipt, err := pub.Publish(context.Background(), event)
	require.NoError(t, err)

	require.Len(t, mock.msgs, 1)
	msg := mock.msgs[0]
	assert.Equal(t, "events.collector.200", msg.Subject)
	assert.Equal(t, event.UniqueID, msg.Header.Get("Event-ID"))

	body, err := event.Body()
	require.NoError(t, err)
	assert.JSONEq(t, body, string(msg.Data))

	assert.Equal(t, TransportJetStream, receipt.Transport)
	assert.Equal(t, event.UniqueID, receipt.MessageID)
	assert.Equal(t, "42", receipt.Sequence)
	assert.Same(t, ack, receipt.Output)
}

func TestJetStreamPublisher_ErrorUnchanged(t *testing.T) {
	pubErr := errors.New("nats: no response from stream")
	mock := &mockJetStream{
		publishMsgFunc: func(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
			return nil, pubErr
		},
	}
	pub := &JetStreamPublisher{js: mock, config: DefaultJetStreamConfig()}

	receipt, err := pub.Publish(context.Background(), NewEvent(DefaultStatus))
	assert.Nil(t, receipt)
	assert.Equal(t, pubErr, err)
}

func TestJetStreamPublisher_CloseWithoutConnection(t *testing.T) {
	pub := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	assert.NoError(t, pub.Close())
}
