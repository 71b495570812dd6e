package broker

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Consumer wraps a group reader with explicit commits so a message is only
// acknowledged after its unit of work completed (at-least-once).
type Consumer struct {
	r *kafka.Reader
}

// NewResponseConsumer reads device confirmations.
func NewResponseConsumer(cfg Config) *Consumer {
	return newConsumer(cfg, cfg.ResponseTopic)
}

// NewActionConsumer reads automation action requests.
func NewActionConsumer(cfg Config) *Consumer {
	return newConsumer(cfg, cfg.ActionTopic)
}

func newConsumer(cfg Config, topic string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topic:           topic,
		MinBytes:        kafkaMinBytes,
		MaxBytes:        kafkaMaxBytes,
		ReadLagInterval: -1,
	})
	return &Consumer{r: r}
}

// Fetch blocks for the next message without committing it.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.r.FetchMessage(ctx)
}

// Commit acknowledges a processed message.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	return c.r.CommitMessages(ctx, msg)
}

func (c *Consumer) Close() error { return c.r.Close() }
