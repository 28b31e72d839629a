package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditpg "creditflow/pkg/platform/audit/store/postgres"
)

// Outbox is the pending-message view of the Postgres audit store.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]auditpg.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers one encoded message.
type Producer interface {
	PublishRaw(ctx context.Context, key, eventType string, value []byte) error
}

// Relay polls the outbox and forwards pending entries to Kafka. Entries are
// marked published only after a successful produce, giving at-least-once delivery.
type Relay struct {
	outbox    Outbox
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRelay(outbox Outbox, producer Producer, interval time.Duration, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{outbox: outbox, producer: producer, interval: interval, batchSize: 100, logger: logger}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce forwards a single batch and returns how many entries were published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	published := make([]uuid.UUID, 0, len(entries))
	var produceErr error
	for _, e := range entries {
		if err := r.producer.PublishRaw(ctx, e.AggregateID, e.EventType, e.Payload); err != nil {
			produceErr = err
			break
		}
		published = append(published, e.ID)
	}
	if err := r.outbox.MarkPublished(ctx, published, time.Now()); err != nil {
		return 0, err
	}
	return len(published), produceErr
}
