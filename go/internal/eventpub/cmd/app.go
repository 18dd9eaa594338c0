package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mcdev12/eventcollector/go/internal/eventpub"
	"github.com/mcdev12/eventcollector/go/internal/queueconfig"
)

type publisherFactory func(ctx context.Context, cfg queueconfig.Config) (eventpub.Publisher, error)

func newApp(factory publisherFactory) *cli.App {
	return &cli.App{
		Name:  "publish-event",
		Usage: "send one status event to the collector queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "path to the configuration file"},
			&cli.StringFlag{Name: "queue", Aliases: []string{"q"}, Usage: "queue URL or name"},
			&cli.StringFlag{Name: "region", Usage: "AWS region"},
			&cli.StringFlag{Name: "endpoint", Usage: "SQS endpoint override"},
			&cli.IntFlag{Name: "status", Aliases: []string{"s"}, Usage: "status carried by the event"},
			&cli.StringFlag{Name: "transport", Usage: "sqs or jetstream"},
			&cli.StringFlag{Name: "log-level", Usage: "zerolog level"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := queueconfig.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlags(c, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			configureLogging(cfg.Log)

			reg := prometheus.NewRegistry()
			metrics, err := eventpub.NewPrometheusMetrics(reg)
			if err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			pub, err := factory(c.Context, cfg)
			if err != nil {
				return fmt.Errorf("create publisher: %w", err)
			}
			defer func() {
				if err := pub.Close(); err != nil {
					log.Error().Err(err).Msg("close publisher")
				}
			}()

			mp := eventpub.NewMetricPublisher(pub, cfg.Transport, metrics, clockwork.NewRealClock())
			err = publish(c.Context, mp, cfg.Status, c.App.Writer)
			pushMetrics(cfg.Metrics, reg)
			return err
		},
	}
}

func applyFlags(c *cli.Context, cfg *queueconfig.Config) {
	if c.IsSet("queue") {
		cfg.QueueURL = c.String("queue")
	}
	if c.IsSet("region") {
		cfg.Region = c.String("region")
	}
	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("status") {
		cfg.Status = c.Int("status")
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
}

func newPublisher(ctx context.Context, cfg queueconfig.Config) (eventpub.Publisher, error) {
	switch cfg.Transport {
	case eventpub.TransportJetStream:
		jsCfg := eventpub.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		return eventpub.NewJetStreamPublisher(ctx, jsCfg)
	default:
		return eventpub.NewSQSPublisher(ctx, sqsConfig(cfg))
	}
}

func sqsConfig(cfg queueconfig.Config) eventpub.SQSConfig {
	return eventpub.SQSConfig{
		Region:         cfg.Region,
		Queue:          cfg.QueueURL,
		Endpoint:       cfg.Endpoint,
		MessageGroupID: cfg.MessageGroupID,
	}
}

// publish sends one event and writes the service response to out.
func publish(ctx context.Context, pub eventpub.Publisher, status int, out io.Writer) error {
	receipt, err := pub.Publish(ctx, eventpub.NewEvent(status))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(receipt.Output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func configureLogging(cfg queueconfig.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// pushMetrics is best effort.
func pushMetrics(cfg queueconfig.MetricsConfig, reg *prometheus.Registry) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(reg).Push(); err != nil {
		log.Warn().Err(err).Str("pushgateway", cfg.PushgatewayURL).Msg("push metrics")
	}
}
