// Package broker publishes catalog change events to Kafka.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config describes the Kafka writer.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// Message is a keyed event ready for publishing.
type Message struct {
	Key   string
	Value any
}

// messageWriter is the subset of *kafka.Writer used by Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON encoded events to a single topic. Messages sharing a
// key land on the same partition so per-product ordering is preserved.
type Producer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewProducer constructs a Producer backed by kafka-go.
func NewProducer(cfg Config, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("broker: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("broker: topic required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              10,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger), nil
}

func newProducer(w messageWriter, topic string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: w, topic: topic, logger: logger}
}

// Publish encodes each message value as JSON and writes the batch.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if p == nil || len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		value, err := json.Marshal(m.Value)
		if err != nil {
			return fmt.Errorf("broker: encode %s: %w", m.Key, err)
		}
		out = append(out, kafka.Message{Key: []byte(m.Key), Value: value, Time: time.Now().UTC()})
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		p.logger.Warn("kafka publish failed", slog.String("topic", p.topic), slog.Int("messages", len(out)), slog.Any("error", err))
		return fmt.Errorf("broker: write %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
