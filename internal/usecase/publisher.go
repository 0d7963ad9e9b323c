package usecase

import (
	"context"
	"fmt"

	"ArbPull/internal/domain/models"
	"ArbPull/pkg/kafka"
	applogger "ArbPull/pkg/logger"
)

// KafkaPublisher pushes detected opportunities to a Kafka topic, keyed by
// game ID so updates for one game stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *applogger.Logger
}

// NewKafkaPublisher creates a publisher on an existing producer.
func NewKafkaPublisher(producer *kafka.Producer, topic string, logger *applogger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With("publisher"),
	}
}

// PublishOpportunities sends the batch in one writer call.
func (p *KafkaPublisher) PublishOpportunities(ctx context.Context, opps []models.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(opps))
	for _, opp := range opps {
		messages = append(messages, kafka.Message{
			Key:   []byte(opp.GameID),
			Value: opp,
		})
	}

	if err := p.producer.PublishBatch(ctx, p.topic, messages); err != nil {
		return fmt.Errorf("publish opportunities: %w", err)
	}

	p.logger.Debug("published opportunities",
		applogger.String("topic", p.topic),
		applogger.Int("count", len(messages)),
	)
	return nil
}

// Close closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
