package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

// KafkaPublisher writes events to one topic keyed by stream id, so all events
// of a run land on the same partition in order.
type KafkaPublisher struct {
	syncProducer sarama.SyncProducer
	topic        string
}

func NewKafkaPublisher(syncProducer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		syncProducer: syncProducer,
		topic:        topic,
	}
}

// NewProducerConfig is the producer config used for run events
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V4_0_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	return cfg
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(BaseEvent{
		EventType:    event.Type(),
		Stream:       event.StreamID(),
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: event.Version(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type(), err)
	}

	partition, offset, err := p.syncProducer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.StreamID()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type())},
		},
	})
	if err != nil {
		logger.Error(ctx, "Failed to send event", logger.String("type", event.Type()), logger.ErrorF(err))
		return err
	}

	logger.Debug(ctx, "Event sent",
		logger.String("topic", p.topic),
		logger.String("type", event.Type()),
		logger.Any("partition", partition),
		logger.Int64("offset", offset),
	)

	return nil
}
