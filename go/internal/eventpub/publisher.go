package eventpub

import "context"

// Transport names accepted by the publisher factory.
const (
	TransportSQS       = "sqs"
	TransportJetStream = "jetstream"
)

// Receipt is the acknowledgement of one published event.
type Receipt struct {
	Transport string
	MessageID string
	// Sequence is the SQS FIFO sequence number or the JetStream stream sequence.
	Sequence string
	// Output is the response returned by the queue service, untouched.
	Output any
}

// Publisher sends a single event to a queue.
type Publisher interface {
	Publish(ctx context.Context, event Event) (*Receipt, error)
	Close() error
}
