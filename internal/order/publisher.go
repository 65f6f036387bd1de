package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/maxshopweb/checkout/internal/domain"
)

// EventPublisher announces accepted orders to the rest of the shop
// (fulfillment, invoicing). Publishing is best-effort: the order stands even
// if the announcement fails.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *domain.Order) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-created",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		// Keyed by owner so one buyer's orders stay in sequence.
		Key:   []byte(o.OwnerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.created")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
