package outbox

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/joao-fontenele/caicara-stock/internal/database"
)

// Publisher delivers one serialized event.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type Relay struct {
	db        *sql.DB
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRelay(db *sql.DB, publisher Publisher, interval time.Duration, logger *slog.Logger) *Relay {
	return &Relay{
		db:        db,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
	}
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("outbox flush failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch of pending events and returns how many were sent.
// A publish failure stops the batch; the remaining rows stay pending and are
// retried on the next flush, so delivery is at-least-once and in id order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	sent := 0

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		records, err := claimPending(ctx, tx, r.batchSize)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if err := r.publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
				r.logger.Error("failed to publish outbox event", "error", err, "event_id", rec.EventID, "topic", rec.Topic)
				return nil
			}
			if err := markSent(ctx, tx, rec.ID); err != nil {
				return err
			}
			sent++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if sent > 0 {
		r.logger.Info("outbox events published", "count", sent)
	}
	return sent, nil
}
