// Package poller consumes order-placed events so that every storefront
// instance drops its stale in-memory copy of a session whose order was placed.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/dataapi"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SessionEvicter drops stale in-memory session state after an order was placed.
type SessionEvicter interface {
	Evict(sessionID, orderID string) bool
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	sessions SessionEvicter
	reader   messageReader
	logger   *zap.Logger
}

func NewPoller(sessions SessionEvicter, groupID string, logger *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.OrdersTopic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{sessions: sessions, reader: reader, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("error reading message", zap.Error(err))
			}
			continue
		}
		if err := p.handle(ctx, m); err != nil {
			p.logger.Warn("failed to handle order event",
				zap.String("key", string(m.Key)),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	if eventType := header(m, "event_type"); eventType != "" && eventType != dataapi.EventTypeOrderPlaced {
		return nil
	}

	var event dataapi.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}
	if event.SessionID == "" {
		return errors.New("missing session_id")
	}

	if !p.sessions.Evict(event.SessionID, event.OrderID) {
		return nil
	}
	p.logger.Debug("session evicted after order",
		zap.String("session_id", event.SessionID),
		zap.String("order_id", event.OrderID))
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
