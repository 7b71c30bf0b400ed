package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	resdomain "github.com/commercefull/stockledger/internal/reservation/domain"
	"github.com/commercefull/stockledger/pkg/logger"
)

// ReservationLifecycle is the slice of the reservation manager the order
// consumer drives: paid orders commit their holds, cancelled orders release
type ReservationLifecycle interface {
	CommitReference(ctx context.Context, referenceID, referenceType string) error
	ReleaseReference(ctx context.Context, referenceID, referenceType string) error
}

// OrderConsumer consumes order lifecycle events and settles reservations
type OrderConsumer struct {
	consumer     sarama.ConsumerGroup
	groupID      string
	reservations ReservationLifecycle
}

// NewOrderConsumer creates a consumer group over the order events topic
func NewOrderConsumer(brokers []string, groupID string, reservations ReservationLifecycle) (*OrderConsumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Str("topic", TopicOrderEvents).
		Msg("Kafka order consumer initialized")

	return &OrderConsumer{
		consumer:     consumer,
		groupID:      groupID,
		reservations: reservations,
	}, nil
}

// Start starts consuming order events until ctx is cancelled
func (c *OrderConsumer) Start(ctx context.Context) {
	handler := &orderGroupHandler{consumer: c}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Logger.Info().Msg("Order consumer context cancelled, stopping")
				return
			default:
				if err := c.consumer.Consume(ctx, []string{TopicOrderEvents}, handler); err != nil {
					logger.Logger.Error().Err(err).Msg("Error from order consumer")
				}
			}
		}
	}()

	go func() {
		for err := range c.consumer.Errors() {
			logger.Logger.Error().Err(err).Msg("Order consumer error")
		}
	}()
}

// Close closes the Kafka consumer
func (c *OrderConsumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

type orderGroupHandler struct {
	consumer *OrderConsumer
}

func (h *orderGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *orderGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *orderGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *orderGroupHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	// Extract trace context from Kafka headers
	carrier := propagation.MapCarrier{}
	eventType := ""
	for _, header := range message.Headers {
		key := string(header.Key)
		switch key {
		case "traceparent", "tracestate":
			carrier[key] = string(header.Value)
		case "event_type":
			eventType = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("kafka-consumer")
	ctx, span := tracer.Start(ctx, "kafka.consume.order_event",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	if eventType != EventTypeOrderPaid && eventType != EventTypeOrderCancelled {
		logger.Debug(ctx).Str("event_type", eventType).Msg("Ignoring unrelated order event")
		return
	}

	var event OrderLifecycleEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to unmarshal event")
		logger.Error(ctx).Err(err).Str("event_type", eventType).Msg("Failed to unmarshal order event")
		return
	}

	referenceID := event.ReferenceID
	referenceType := event.ReferenceType
	if referenceID == "" {
		referenceID = event.OrderID
		referenceType = "order"
	}

	span.SetAttributes(
		attribute.String("reservation.reference_id", referenceID),
		attribute.String("reservation.reference_type", referenceType),
	)

	var err error
	switch eventType {
	case EventTypeOrderPaid:
		err = h.consumer.reservations.CommitReference(ctx, referenceID, referenceType)
	case EventTypeOrderCancelled:
		err = h.consumer.reservations.ReleaseReference(ctx, referenceID, referenceType)
	}

	if err != nil {
		var noActive *resdomain.NoActiveReservationError
		if errors.As(err, &noActive) {
			// Redelivery or an order that never held stock; nothing to settle.
			logger.Debug(ctx).
				Str("reference_id", referenceID).
				Str("event_type", eventType).
				Msg("Order event had no active reservation")
			span.SetStatus(codes.Ok, "No active reservation")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to settle reservation")
		logger.Error(ctx).Err(err).
			Str("reference_id", referenceID).
			Str("event_type", eventType).
			Msg("Failed to settle reservation for order event")
		return
	}

	span.SetStatus(codes.Ok, "Order event handled")
	logger.Info(ctx).
		Str("event_id", event.EventID).
		Str("event_type", eventType).
		Str("reference_id", referenceID).
		Msg("Order event handled")
}
