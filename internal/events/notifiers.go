package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// RedisNotifier publishes events on a Redis pub/sub channel.
type RedisNotifier struct {
	Client  redis.UniversalClient
	Channel string
}

func (n RedisNotifier) Notify(ctx context.Context, event Event) error {
	if n.Client == nil {
		return errors.New("events: redis client not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := n.Channel
	if channel == "" {
		channel = "cart.events"
	}
	return n.Client.Publish(ctx, channel, data).Err()
}

// MessageWriter is the part of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a writer that balances by key, so events of one topic stay ordered.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// KafkaNotifier writes events to Kafka, keyed by event topic.
type KafkaNotifier struct {
	Writer MessageWriter
}

func (n KafkaNotifier) Notify(ctx context.Context, event Event) error {
	if n.Writer == nil {
		return errors.New("events: kafka writer not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.Topic),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
		},
	}
	if err := n.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", event.Topic, err)
	}
	return nil
}

// LogNotifier writes every event to a zerolog logger at debug level.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Debug().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		RawJSON("payload", event.Payload).
		Msg("cart_event")
	return nil
}
