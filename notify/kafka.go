// Copyright (c) 2025 BVK Chaitanya

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes decision records as JSON messages to a kafka
// topic. Writes are asynchronous; delivery failures are logged and dropped.
type KafkaNotifier struct {
	writer *kafka.Writer
}

var _ Notifier = &KafkaNotifier{}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("broker list cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("could not publish decision records to kafka", "count", len(messages), "err", err)
			}
		},
	}
	return &KafkaNotifier{writer: w}, nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("could not marshal decision record to json", "err", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.Type),
		Value: data,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		slog.Warn("could not enqueue decision record to kafka", "err", err)
	}
}
