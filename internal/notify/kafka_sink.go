package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

const eventTypeBookingConfirmation = "booking-confirmation"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes confirmations to a topic keyed by recipient, so one
// patient's confirmations stay ordered.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Compression:  compress.Snappy,
			MaxAttempts:  3,
		},
	}, nil
}

func (s *KafkaSink) Send(ctx context.Context, msg BookingConfirmation) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Recipient),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypeBookingConfirmation)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
