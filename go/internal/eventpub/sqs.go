package eventpub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

// SQSAPI is the subset of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, input *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

type SQSConfig struct {
	Region string
	// Queue is either a queue URL or a queue name.
	Queue string
	// Endpoint overrides the service endpoint, e.g. LocalStack.
	Endpoint string
	// MessageGroupID is only sent to FIFO queues.
	MessageGroupID string
}

func DefaultSQSConfig() SQSConfig {
	return SQSConfig{
		Region:         "ap-south-1",
		Queue:          "event-collector-queue",
		MessageGroupID: "event-collector",
	}
}

type SQSPublisher struct {
	client SQSAPI
	config SQSConfig

	mu       sync.Mutex
	queueURL string
}

func NewSQSPublisher(ctx context.Context, cfg SQSConfig) (*SQSPublisher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	log.Debug().
		Str("region", cfg.Region).
		Str("queue", cfg.Queue).
		Str("endpoint", cfg.Endpoint).
		Msg("created SQS client")

	return NewSQSPublisherWithAPI(sqs.NewFromConfig(awsCfg), cfg), nil
}

// NewSQSPublisherWithAPI builds a publisher around an existing client.
func NewSQSPublisherWithAPI(api SQSAPI, cfg SQSConfig) *SQSPublisher {
	p := &SQSPublisher{client: api, config: cfg}
	if isQueueURL(cfg.Queue) {
		p.queueURL = cfg.Queue
	}
	return p
}

// PublishEvent sends one event with a fresh unique ID and returns the
// service response as is. Client errors are not wrapped or retried.
func (p *SQSPublisher) PublishEvent(ctx context.Context, status int) (*sqs.SendMessageOutput, error) {
	return p.send(ctx, NewEvent(status))
}

func (p *SQSPublisher) Publish(ctx context.Context, event Event) (*Receipt, error) {
	out, err := p.send(ctx, event)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Transport: TransportSQS,
		MessageID: aws.ToString(out.MessageId),
		Sequence:  aws.ToString(out.SequenceNumber),
		Output:    out,
	}

	log.Info().
		Str("queue_url", p.resolvedURL()).
		Str("unique_id", event.UniqueID).
		Str("message_id", receipt.MessageID).
		Msg("published to SQS")

	return receipt, nil
}

func (p *SQSPublisher) Close() error {
	return nil
}

func (p *SQSPublisher) send(ctx context.Context, event Event) (*sqs.SendMessageOutput, error) {
	body, err := event.Body()
	if err != nil {
		return nil, err
	}

	queueURL, err := p.resolveQueueURL(ctx)
	if err != nil {
		return nil, err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	}
	if isFIFO(queueURL) {
		if p.config.MessageGroupID != "" {
			input.MessageGroupId = aws.String(p.config.MessageGroupID)
		}
		input.MessageDeduplicationId = aws.String(event.UniqueID)
	}

	return p.client.SendMessage(ctx, input)
}

// resolveQueueURL looks the queue name up once and remembers the URL.
func (p *SQSPublisher) resolveQueueURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queueURL != "" {
		return p.queueURL, nil
	}

	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(p.config.Queue),
	})
	if err != nil {
		return "", err
	}

	p.queueURL = aws.ToString(out.QueueUrl)
	log.Debug().
		Str("queue", p.config.Queue).
		Str("queue_url", p.queueURL).
		Msg("resolved queue URL")

	return p.queueURL, nil
}

func (p *SQSPublisher) resolvedURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueURL
}

func isQueueURL(queue string) bool {
	u, err := url.Parse(queue)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isFIFO(queueURL string) bool {
	return strings.HasSuffix(queueURL, ".fifo")
}
