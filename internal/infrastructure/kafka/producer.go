package kafka

import (
	"context"
	"fmt"
	"time"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/entity"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Producer publishes task lifecycle events to Kafka
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              10,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
	}
}

// Publish sends one event keyed by task id, so a task's events stay ordered within a partition
func (p *Producer) Publish(ctx context.Context, event *entity.Event) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(event.TaskID),
		Value: data,
		Time:  event.CreatedAt,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish %s event for task %s: %w", event.Type, event.TaskID, err)
	}
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// EncodeEvent marshals an event as a protobuf Struct
func EncodeEvent(event *entity.Event) ([]byte, error) {
	meta := make(map[string]any, len(event.Meta))
	for k, v := range event.Meta {
		meta[k] = v
	}

	payload, err := structpb.NewStruct(map[string]any{
		"event_id":    float64(event.ID),
		"task_id":     event.TaskID,
		"user_id":     event.UserID,
		"event_type":  string(event.Type),
		"from_status": string(event.FromStatus),
		"created_at":  event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"meta":        meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}

	data, err := proto.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
