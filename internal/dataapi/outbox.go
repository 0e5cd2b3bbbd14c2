package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
)

type OutboxEvent struct {
	ID          int
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// GetUnprocessedEvents returns up to limit events not yet published, oldest first.
func (c *Client) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	return circuitbreaker.Execute(c.breaker, func() ([]*OutboxEvent, error) {
		query := `SELECT id, aggregate_id, event_type, payload, created_at
		          FROM outbox_events WHERE processed_at IS NULL
		          ORDER BY created_at, id LIMIT $1`

		rows, err := c.db.QueryContext(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("query outbox events: %w", err)
		}
		defer rows.Close()

		var events []*OutboxEvent
		for rows.Next() {
			var ev OutboxEvent
			var payload []byte
			if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
				return nil, fmt.Errorf("scan outbox row: %w", err)
			}
			ev.Payload = payload
			events = append(events, &ev)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return events, nil
	})
}

func (c *Client) MarkEventAsProcessed(ctx context.Context, id int) error {
	_, err := circuitbreaker.Execute(c.breaker, func() (struct{}, error) {
		_, err := c.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return struct{}{}, fmt.Errorf("mark outbox event %d processed: %w", id, err)
		}
		return struct{}{}, nil
	})
	return err
}
