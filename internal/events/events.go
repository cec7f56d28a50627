// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tg-storefront/internal/config"
	"tg-storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the message value written for every order change.
type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        int64           `json:"order_id"`
	Status         model.Status    `json:"status"`
	PreviousStatus model.Status    `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// OrderCreated builds the event emitted after an order is persisted.
func OrderCreated(order *model.Order) OrderEvent {
	return OrderEvent{
		Type:       TypeOrderCreated,
		OrderID:    order.ID,
		Status:     order.Status,
		Total:      order.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// StatusChanged builds the event emitted after a status transition.
func StatusChanged(order *model.Order, previous model.Status) OrderEvent {
	return OrderEvent{
		Type:           TypeOrderStatusChanged,
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id, so events of one order
// land on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPublisher returns a Kafka publisher, or a NopPublisher when no
// brokers are configured. Each Publish is bounded by cfg.PublishTimeout.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info().Msg("kafka brokers not configured, order events disabled")
		return NopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           5 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           cfg.PublishTimeout,
	}
	return newKafkaPublisher(writer, cfg.PublishTimeout, logger)
}

func newKafkaPublisher(w messageWriter, timeout time.Duration, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		timeout: timeout,
		logger:  logger.With().Str("component", "events").Logger(),
	}
}

// Publish writes one event. The write is abandoned once the publish timeout
// elapses.
func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: data,
		Time:  event.OccurredAt,
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for order %d: %w", event.Type, event.OrderID, err)
	}

	p.logger.Debug().
		Str("type", event.Type).
		Int64("order_id", event.OrderID).
		Msg("event published")
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
