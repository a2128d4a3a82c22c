// Package messaging publishes domain events to the message broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/example/icecreamshop/pkg/config"
	kafkaGo "github.com/segmentio/kafka-go"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// KafkaPublisher shares one writer across topics; the topic is set per
// message and prefixed with the configured namespace.
type KafkaPublisher struct {
	writer *kafkaGo.Writer
	prefix string
}

func NewKafkaPublisher(cfg *config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(cfg.Brokers...),
			Balancer:               &kafkaGo.Hash{},
			AllowAutoTopicCreation: true,
		},
		prefix: cfg.TopicPrefix,
	}
}

func (k *KafkaPublisher) Topic(name string) string {
	return k.prefix + name
}

func (k *KafkaPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: k.Topic(topic),
		Key:   []byte(key),
		Value: payload,
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// Message is an event captured by MemoryPublisher.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryPublisher keeps published events in memory. It stands in for Kafka
// when the broker is disabled.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) PublishEvent(_ context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Topic: topic, Key: key, Value: payload})
	return nil
}

func (m *MemoryPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *MemoryPublisher) Close() error {
	return nil
}
