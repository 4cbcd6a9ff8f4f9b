// Package kafka publishes the relay's change feed: one message per freshly
// cached resource.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces fetch.Update messages to a Kafka topic.
// It implements fetch.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a producer for topic on brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one update. Keys hash to a stable partition so updates to
// the same resource stay ordered.
func (p *Publisher) Publish(ctx context.Context, u fetch.Update) error {
	if err := p.writer.WriteMessages(ctx, toMessage(u)); err != nil {
		return fmt.Errorf("publish %s: %w", u.Key, err)
	}
	p.logger.Debug("published resource update", "key", u.Key, "category", u.Category)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// toMessage maps an update onto a Kafka message. The value is the canonical
// cached JSON; metadata travels in headers.
func toMessage(u fetch.Update) kafkago.Message {
	headers := []kafkago.Header{
		{Key: "category", Value: []byte(u.Category)},
		{Key: "stored_at", Value: []byte(u.StoredAt.UTC().Format(time.RFC3339))},
	}
	if u.ExpiresAt != nil {
		headers = append(headers, kafkago.Header{Key: "expires_at", Value: []byte(u.ExpiresAt.UTC().Format(time.RFC3339))})
	}
	return kafkago.Message{
		Key:     []byte(u.Key),
		Value:   u.Value,
		Time:    u.StoredAt,
		Headers: headers,
	}
}
