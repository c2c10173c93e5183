// Package outbox stores domain events in the same transaction as the state
// change that produced them and relays them to the message broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/caicara-stock/internal/database"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Insert enqueues payload for topic. Call it with the transaction that
// performs the change the event describes.
func Insert(ctx context.Context, q database.Querier, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO outbox (event_id, topic, key, payload)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), topic, key, string(data))
	if err != nil {
		return fmt.Errorf("insert %s event: %w", topic, err)
	}

	return nil
}

// claimPending locks up to limit unsent records. Rows locked by another relay
// are skipped.
func claimPending(ctx context.Context, q database.Querier, limit int) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, event_id, topic, key, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func markSent(ctx context.Context, q database.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	return err
}
