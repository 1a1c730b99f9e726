/**
 * Task status events
 *
 * Every status change is published as JSON on the "<queue>:events" Redis
 * channel and, when brokers are configured, to a Kafka topic keyed by task ID.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// StatusEvent is one task status change
type StatusEvent struct {
	Event            string `json:"event"`
	TaskID           string `json:"taskId"`
	Status           string `json:"status"`
	DocumentType     string `json:"documentType,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	ProcessingTimeMs int64  `json:"processingTime,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// NewStatusEvent creates an event named "task:<status>"
func NewStatusEvent(taskID, status string) *StatusEvent {
	return &StatusEvent{
		Event:     "task:" + strings.ToLower(status),
		TaskID:    taskID,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// EventPublisher delivers status events
type EventPublisher interface {
	Publish(ctx context.Context, event *StatusEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *StatusEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// EventsChannel is the pub/sub channel for a queue
func EventsChannel(queueName string) string {
	return queueName + ":events"
}

// RedisEventPublisher publishes on a Redis channel
type RedisEventPublisher struct {
	client  redis.UniversalClient
	channel string
	owned   bool
}

// NewRedisEventPublisher publishes to EventsChannel(queueName) on a client
// owned by the caller
func NewRedisEventPublisher(client redis.UniversalClient, queueName string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: EventsChannel(queueName)}
}

// DialRedisEventPublisher connects its own client, which Close releases
func DialRedisEventPublisher(redisURL, queueName string) (*RedisEventPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	p := NewRedisEventPublisher(redis.NewClient(opt), queueName)
	p.owned = true
	return p, nil
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event *StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *RedisEventPublisher) Close() error {
	if p.owned {
		return p.client.Close()
	}
	return nil
}

// kafkaWriter is the part of *kafka.Writer the publisher uses
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes events to a Kafka topic
type KafkaEventPublisher struct {
	writer kafkaWriter
}

// NewKafkaEventPublisher creates a publisher writing to topic on brokers
func NewKafkaEventPublisher(brokers []string, topic string) (*KafkaEventPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}
	return &KafkaEventPublisher{writer: writer}, nil
}

// Publish writes the event keyed by task ID so one task's events stay ordered
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// MultiPublisher fans an event out to every publisher
type MultiPublisher []EventPublisher

// Publish tries every publisher and returns the first error
func (m MultiPublisher) Publish(ctx context.Context, event *StatusEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
