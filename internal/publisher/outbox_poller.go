package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_storefront/internal/dataapi"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const OrdersTopic = "storefront-orders"

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*dataapi.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays committed outbox rows to Kafka. Delivery is at least once:
// an event is marked processed only after the broker accepted it.
type OutboxPoller struct {
	eventTick time.Duration
	batchSize int
	repo      OutboxRepository
	writer    messageWriter
	logger    *zap.Logger
}

func NewOutboxPoller(repo OutboxRepository, logger *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OrdersTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick: time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    w,
		logger:    logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Warn("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish outbox event", zap.Int("event_id", event.ID), zap.Error(err))
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Warn("failed to mark outbox event as processed", zap.Int("event_id", event.ID), zap.Error(err))
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *dataapi.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
