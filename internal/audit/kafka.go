package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore appends audit events to a Kafka topic. Events are keyed by
// user id so per-user ordering is preserved across partitions.
type KafkaStore struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaStore(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp {
		// Already-exists is fine, anything else gets surfaced in the logs.
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			logger.Warn("audit topic creation", "topic", r.Topic, "error", r.Err)
		}
	}

	return &KafkaStore{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByUser is not supported on the Kafka sink; the trail is consumed
// downstream. Readers use the memory store in development.
func (s *KafkaStore) ListByUser(context.Context, string) ([]Event, error) {
	return nil, nil
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
