package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/commercefull/stockledger/pkg/logger"
)

// Publisher wraps a Kafka sync producer for stock events
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return &Publisher{producer: producer, brokers: brokers}, nil
}

// PublishLowStockCrossed publishes a low stock event
func (p *Publisher) PublishLowStockCrossed(ctx context.Context, event LowStockCrossedEvent) error {
	event.EventType = EventTypeLowStockCrossed
	return p.publish(ctx, &event.EventID, &event.Timestamp, event.EventType,
		"stock_"+event.LocationID+"_"+event.SKU, &event,
		attribute.String("stock.location_id", event.LocationID),
		attribute.String("stock.sku", event.SKU),
		attribute.Int("stock.available", event.Available),
	)
}

// PublishReservationExpired publishes a reservation expired event
func (p *Publisher) PublishReservationExpired(ctx context.Context, event ReservationExpiredEvent) error {
	event.EventType = EventTypeReservationExpired
	return p.publish(ctx, &event.EventID, &event.Timestamp, event.EventType,
		"reservation_"+event.ReservationID, &event,
		attribute.String("reservation.id", event.ReservationID),
		attribute.String("reservation.reference_id", event.ReferenceID),
		attribute.Int("reservation.quantity", event.Quantity),
	)
}

// PublishTransferCompleted publishes a transfer completed event
func (p *Publisher) PublishTransferCompleted(ctx context.Context, event TransferCompletedEvent) error {
	event.EventType = EventTypeTransferCompleted
	return p.publish(ctx, &event.EventID, &event.Timestamp, event.EventType,
		"transfer_"+event.TransferID, &event,
		attribute.String("transfer.id", event.TransferID),
		attribute.Bool("transfer.partial", event.Partial),
	)
}

// publish marshals and sends one event with tracing, filling in event
// metadata through the eventID/timestamp pointers
func (p *Publisher) publish(ctx context.Context, eventID *string, timestamp *time.Time, eventType, key string, payload interface{}, attrs ...attribute.KeyValue) error {
	tracer := otel.Tracer("kafka-publisher")
	ctx, span := tracer.Start(ctx, "kafka.publish."+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(append(attrs,
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", TopicStockEvents),
			attribute.String("event.type", eventType),
		)...),
	)
	defer span.End()

	if *eventID == "" {
		*eventID = uuid.NewString()
	}
	*timestamp = time.Now()
	span.SetAttributes(attribute.String("event.id", *eventID))

	eventBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inject trace context into Kafka headers
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(*eventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   TopicStockEvents,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Error(ctx).
			Err(err).
			Str("topic", TopicStockEvents).
			Str("event_type", eventType).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published")

	logger.Info(ctx).
		Str("event_id", *eventID).
		Str("event_type", eventType).
		Str("topic", TopicStockEvents).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Stock event published")
	return nil
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
