/**
 * Asynq Queue Consumer for the OCRR Worker
 *
 * Alternative to the list-based consumer for deployments that already run
 * asynq. Retries use asynq's own bookkeeping; bad input is not retried.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/processor"
)

// Consumer handles task consumption through asynq
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	inspector *asynq.Inspector
	mux       *asynq.ServeMux
	runner    *jobRunner
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	Events            EventPublisher
	ProcessingTimeout int64 // milliseconds, default 300000
	WorkspaceDir      string
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = defaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("asynq-consumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// 5s, 10s, 20s ... capped at a minute
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err.Error())
			}),
			Logger: logger.Entry(),
		},
	)

	consumer := &Consumer{
		client:    asynq.NewClient(redisOpt),
		server:    server,
		inspector: asynq.NewInspector(redisOpt),
		mux:       asynq.NewServeMux(),
		runner:    newJobRunner(cfg.Processor, cfg.Events, cfg.ProcessingTimeout, cfg.WorkspaceDir, logger),
		config:    cfg,
		logger:    logger,
	}

	consumer.mux.HandleFunc(redactTaskType, consumer.handleRedact)

	return consumer, nil
}

func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting asynq queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")

	c.server.Shutdown()

	if err := c.inspector.Close(); err != nil {
		c.logger.Warn("Failed to close inspector", "error", err.Error())
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	c.logger.Info("Queue consumer stopped")
	return nil
}

// Enqueue submits a redaction task
func (c *Consumer) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	payload.normalize()
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(redactTaskType, data),
		asynq.Queue(c.config.QueueName),
		asynq.MaxRetry(defaultMaxRetries-1),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

// handleRedact processes one redaction task
func (c *Consumer) handleRedact(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	_, err := c.runner.run(ctx, &payload, retried >= maxRetry)
	if err == nil {
		return nil
	}
	if !workerErrors.IsRetryable(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// GetStats returns queue statistics; completed and failed count today's tasks
func (c *Consumer) GetStats(ctx context.Context) (map[string]int64, error) {
	info, err := c.inspector.GetQueueInfo(c.config.QueueName)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue info: %w", err)
	}

	return map[string]int64{
		"waiting":    int64(info.Pending + info.Scheduled + info.Retry),
		"processing": int64(info.Active),
		"completed":  int64(info.Processed - info.Failed),
		"failed":     int64(info.Failed),
	}, nil
}
