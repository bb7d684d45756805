package events

import (
	"context"
	"fmt"

	"loadboard/pkg/kafka"
	kafka_config "loadboard/pkg/kafka/config"
	"loadboard/pkg/logger"
)

const schemaVersion = "1"

// KafkaPublisher publishes events through one producer per topic so the
// hash balancer keeps per-aggregate ordering within a topic.
type KafkaPublisher struct {
	producers map[string]*kafka.Producer
	source    string
	log       *logger.Logger
}

func NewKafkaPublisher(cfg *kafka_config.Config, source string, log *logger.Logger) (*KafkaPublisher, error) {
	producers := make(map[string]*kafka.Producer)

	for _, topic := range []string{TopicLoads, TopicBids, TopicBookings} {
		producer, err := kafka.NewProducer(cfg, topic, topic+".dlq")
		if err != nil {
			for _, p := range producers {
				_ = p.Close()
			}
			return nil, fmt.Errorf("create producer for topic %s: %w", topic, err)
		}
		producers[topic] = producer
	}

	return &KafkaPublisher{
		producers: producers,
		source:    source,
		log:       log,
	}, nil
}

func (kp *KafkaPublisher) Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	producer, ok := kp.producers[topic]
	if !ok {
		return fmt.Errorf("unknown topic: %s", topic)
	}

	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventID("").
		WithEventType(eventType).
		WithSchemaVersion(schemaVersion).
		WithSource(kp.source).
		Build()

	if err := producer.Publish(ctx, msg); err != nil {
		kp.log.Error("Event publish failed",
			"topic", topic,
			"event_type", eventType,
			"key", key,
			"error", err,
		)
		return err
	}

	return nil
}

func (kp *KafkaPublisher) Close() error {
	var firstErr error
	for topic, producer := range kp.producers {
		if err := producer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close producer for topic %s: %w", topic, err)
		}
	}
	return firstErr
}

// NopPublisher discards events. Used in tests and deployments without a
// broker.
type NopPublisher struct{}

func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (*NopPublisher) Publish(context.Context, string, string, string, interface{}) error {
	return nil
}

func (*NopPublisher) Close() error { return nil }
