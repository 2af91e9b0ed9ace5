package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ppiankov/claimlink/internal/model"
)

const digestHeader = "claimlink-digest"

// producer is the subset of *kgo.Client the notarizer uses
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka publishes snapshots to a topic, keyed by claim ID
type Kafka struct {
	client producer
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Kafka notarizer
type Option func(*Kafka)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) { k.logger = logger }
}

// WithClock sets the clock used for receipt timestamps
func WithClock(now func() time.Time) Option {
	return func(k *Kafka) { k.now = now }
}

// NewKafka connects to the brokers and ensures the topic exists
func NewKafka(ctx context.Context, cfg model.LedgerConfig, opts ...Option) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("ledger requires at least one broker")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}
	return newKafka(client, cfg.Topic, opts...), nil
}

func newKafka(client producer, topic string, opts ...Option) *Kafka {
	k := &Kafka{
		client: client,
		topic:  topic,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopic(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Notarize publishes snap and waits for the broker acknowledgement
func (k *Kafka) Notarize(ctx context.Context, snap Snapshot) (*model.LedgerReceipt, error) {
	data, err := snap.Canonical()
	if err != nil {
		return nil, err
	}
	digest := digestOf(data)

	rec := &kgo.Record{
		Topic:   k.topic,
		Key:     []byte(snap.ClaimID),
		Value:   data,
		Headers: []kgo.RecordHeader{{Key: digestHeader, Value: []byte(digest)}},
	}
	produced, err := k.client.ProduceSync(ctx, rec).First()
	if err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	receipt := &model.LedgerReceipt{
		Digest:      digest,
		Topic:       produced.Topic,
		Partition:   produced.Partition,
		Offset:      produced.Offset,
		PublishedAt: k.now().UTC(),
	}
	k.logger.DebugContext(ctx, "claim notarized",
		"claim_id", snap.ClaimID,
		"topic", receipt.Topic,
		"partition", receipt.Partition,
		"offset", receipt.Offset,
	)
	return receipt, nil
}

// Close flushes and closes the client
func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}
