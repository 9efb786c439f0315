package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// OutboxWorker drains unpublished audit rows to Kafka. It polls rather than
// listens so a crashed worker picks up exactly where it left off.
type OutboxWorker struct {
	store    *PostgresStore
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewOutboxWorker connects to the brokers and ensures the audit topic exists.
func NewOutboxWorker(store *PostgresStore, brokers []string, topic string, logger *slog.Logger) (*OutboxWorker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// CreateTopics is a no-op when the topic already exists.
	if _, err := admin.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		logger.Warn("audit topic creation failed, assuming it exists",
			"topic", topic, "error", err)
	}

	return &OutboxWorker{
		store:    store,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}, nil
}

// Run polls the outbox until the context is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) error {
	rows, err := w.store.NextUnpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(rows))
	for i, row := range rows {
		records[i] = &kgo.Record{
			Topic: w.topic,
			Key:   []byte(row.EventID.String()),
			Value: row.Payload,
		}
	}
	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	published := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		published[i] = row.EventID
	}
	return w.store.MarkPublished(ctx, published)
}

// Close flushes and releases the Kafka client.
func (w *OutboxWorker) Close() {
	w.client.Close()
}
