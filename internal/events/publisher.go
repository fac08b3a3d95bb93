// Package events records the membership audit log and publishes events to
// downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends keyed JSON messages.
type Publisher interface {
	Publish(ctx context.Context, key string, values ...any) error
	Close() error
}

// KafkaPublisher writes JSON messages to one topic.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher for a topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes all values in one batch under the same key, so they land
// on the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, values ...any) error {
	if len(values) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: b})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
