package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink exports every domain event as JSON, keyed by entity id so one
// entity's events stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds an async writer for the topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaSink wraps a writer.
func NewKafkaSink(writer MessageWriter, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{writer: writer, logger: logger}
}

// Attach subscribes the sink to every event type.
func (s *KafkaSink) Attach(dispatcher Dispatcher) {
	for _, eventType := range AllTypes {
		dispatcher.Subscribe(eventType, s.Handle)
	}
}

// Handle writes one event.
func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() {
	if err := s.writer.Close(); err != nil {
		s.logger.Warn("kafka writer close failed", zap.Error(err))
	}
}
