package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka 复用一个 kafka.Writer，Writer 本身是并发安全的
type Kafka struct {
	writer *kafka.Writer
	key    []byte
}

func NewKafka(brokers []string, topic, key string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: empty topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: w, key: []byte(key)}, nil
}

func (p *Kafka) Publish(ctx context.Context, body []byte) error {
	msg := kafka.Message{
		Key:   p.key,
		Value: body,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (p *Kafka) Close() error {
	return p.writer.Close()
}
