package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/player-console/internal/config"
	"github.com/player-console/internal/domain"
)

// Publisher writes console actions to the activity topic
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher creates a synchronous producer for cfg.Topic
func NewPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// RecordAction publishes rec keyed by player ref, so a player's actions
// stay ordered within one partition
func (p *Publisher) RecordAction(_ context.Context, rec domain.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling action: %w", err)
	}

	key := rec.PlayerRef
	if key == "" {
		key = rec.Account
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: rec.CreatedAt,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing action: %w", err)
	}

	p.logger.Debug("action published",
		"kind", rec.Kind,
		"player_ref", rec.PlayerRef,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// Decode parses an activity message
func Decode(value []byte) (domain.ActionRecord, error) {
	var rec domain.ActionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return domain.ActionRecord{}, fmt.Errorf("unmarshaling action: %w", err)
	}
	if rec.Kind == "" || rec.CreatedAt.IsZero() {
		return domain.ActionRecord{}, fmt.Errorf("incomplete action record")
	}
	return rec, nil
}
