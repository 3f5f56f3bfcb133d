// Package kafka publishes persisted audit change sets to a Kafka topic so
// downstream consumers can follow record changes without polling the audit
// tables. Delivery is best-effort: the database rows stay the record of truth.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "ledger/pkg/platform/audit"
)

const (
	defaultLinger     = 10 * time.Millisecond
	defaultPartitions = 3
)

// Publisher produces change sets keyed by audit header id.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*publisherConfig)

type publisherConfig struct {
	clientID string
	logger   *slog.Logger
	linger   time.Duration
}

// WithClientID sets the Kafka client id.
func WithClientID(id string) Option {
	return func(c *publisherConfig) {
		c.clientID = id
	}
}

// WithLogger sets a logger for delivery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *publisherConfig) {
		c.logger = logger
	}
}

// New connects a producer to brokers. The topic is used for every record.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	cfg := publisherConfig{clientID: "ledger-audit", logger: slog.Default(), linger: defaultLinger}
	for _, opt := range opts {
		opt(&cfg)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(cfg.clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(cfg.linger),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: cfg.logger}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, defaultPartitions, -1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish synchronously produces one change set.
func (p *Publisher) Publish(ctx context.Context, set audit.ChangeSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode change set: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(strconv.FormatInt(set.HeaderID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "request_id", Value: []byte(set.RequestID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce change set %d: %w", set.HeaderID, err)
	}
	return nil
}

// Close flushes and closes the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush on close failed", "error", err)
	}
	p.client.Close()
}
