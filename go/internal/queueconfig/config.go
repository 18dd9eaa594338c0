package queueconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/eventcollector/go/internal/eventpub"
)

// Config holds publisher settings.
type Config struct {
	Region         string        `yaml:"region"`
	QueueURL       string        `yaml:"queue_url"`
	Endpoint       string        `yaml:"endpoint"`
	MessageGroupID string        `yaml:"message_group_id"`
	Status         int           `yaml:"status"`
	Transport      string        `yaml:"transport"`
	NATS           NATSConfig    `yaml:"nats"`
	Metrics        MetricsConfig `yaml:"metrics"`
	Log            LogConfig     `yaml:"log"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	sqsCfg := eventpub.DefaultSQSConfig()
	jsCfg := eventpub.DefaultJetStreamConfig()

	return Config{
		Region:         sqsCfg.Region,
		QueueURL:       sqsCfg.Queue,
		MessageGroupID: sqsCfg.MessageGroupID,
		Status:         eventpub.DefaultStatus,
		Transport:      eventpub.TransportSQS,
		NATS: NATSConfig{
			URL:           jsCfg.URL,
			StreamName:    jsCfg.StreamName,
			SubjectPrefix: jsCfg.SubjectPrefix,
		},
		Metrics: MetricsConfig{Job: "event_publisher"},
		Log:     LogConfig{Level: "info"},
	}
}

// NewConfigFromEnv reads environment variables (with defaults).
func NewConfigFromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// Load reads a YAML file on top of the defaults and then applies environment
// overrides. A missing file falls back to environment-only configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		applyEnv(&cfg)
		return cfg, nil
	case err != nil:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Validate checks that the selected transport has what it needs.
// Status is intentionally left alone.
func (c Config) Validate() error {
	switch c.Transport {
	case eventpub.TransportSQS:
		if c.Region == "" {
			return errors.New("region is required for sqs transport")
		}
		if c.QueueURL == "" {
			return errors.New("queue_url is required for sqs transport")
		}
		if strings.HasSuffix(c.QueueURL, ".fifo") && c.MessageGroupID == "" {
			return errors.New("message_group_id is required for fifo queues")
		}
	case eventpub.TransportJetStream:
		if c.NATS.URL == "" {
			return errors.New("nats.url is required for jetstream transport")
		}
		if c.NATS.StreamName == "" || c.NATS.SubjectPrefix == "" {
			return errors.New("nats.stream_name and nats.subject_prefix are required for jetstream transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("EVENT_QUEUE_URL"); v != "" {
		cfg.QueueURL = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("EVENT_MESSAGE_GROUP_ID"); v != "" {
		cfg.MessageGroupID = v
	}
	if v := os.Getenv("EVENT_STATUS"); v != "" {
		if status, err := strconv.Atoi(v); err == nil {
			cfg.Status = status
		}
	}
	if v := os.Getenv("EVENT_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_STREAM"); v != "" {
		cfg.NATS.StreamName = v
	}
	if v := os.Getenv("NATS_SUBJECT_PREFIX"); v != "" {
		cfg.NATS.SubjectPrefix = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_CONSOLE"); v != "" {
		if console, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Console = console
		}
	}
}
