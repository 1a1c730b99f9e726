/**
 * Direct Redis Queue Consumer for the OCRR Worker
 *
 * Task IDs are pushed onto a Redis LIST and the task bodies kept in the
 * "<queue>:data" hash, so any producer that can LPUSH and HSET can enqueue.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/processor"
)

const (
	defaultQueueName  = "ocrr:jobs"
	defaultMaxRetries = 3
	redactTaskType    = "ocrr:redact"
)

var errNoJobs = errors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Payload    TaskPayload `json:"payload"`
	CreatedAt  time.Time   `json:"createdAt"`
	Attempts   int         `json:"attempts"`
	MaxRetries int         `json:"maxRetries"`
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client *redis.Client
	runner *jobRunner
	config *RedisConsumerConfig
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	Events            EventPublisher
	ProcessingTimeout int64 // milliseconds, default 300000
	WorkspaceDir      string
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = defaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.NewLogger("redis-consumer")
	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client: client,
		runner: newJobRunner(cfg.Processor, cfg.Events, cfg.ProcessingTimeout, cfg.WorkspaceDir, logger),
		config: cfg,
		logger: logger,
		ctx:    consumerCtx,
		cancel: cancel,
	}, nil
}

func (c *RedisConsumer) key(suffix string) string {
	return fmt.Sprintf("%s:%s", c.config.QueueName, suffix)
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop gracefully stops the consumer
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// Enqueue stores the task body and pushes its ID onto the queue
func (c *RedisConsumer) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	payload.normalize()
	job := RedisJobData{
		ID:         uuid.New().String(),
		Type:       redactTaskType,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: defaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.key("data"), job.ID, data)
	pipe.LPush(ctx, c.config.QueueName, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if !errors.Is(err, errNoJobs) && c.ctx.Err() == nil {
					c.logger.Error("Worker error", "worker", id, "error", err.Error())
				}
				select {
				case <-time.After(time.Second):
				case <-c.ctx.Done():
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	jobID := result[1]

	jobData, err := c.client.HGet(c.ctx, c.key("data"), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = defaultMaxRetries
	}

	// Workers finish the job in hand on shutdown
	ctx := context.WithoutCancel(c.ctx)

	c.markProcessing(ctx, jobID)

	finalAttempt := job.Attempts+1 >= job.MaxRetries
	processResult, err := c.runner.run(ctx, &job.Payload, finalAttempt)
	if err != nil {
		job.Attempts++
		if !finalAttempt && workerErrors.IsRetryable(err) {
			updatedData, _ := json.Marshal(job)
			pipe := c.client.TxPipeline()
			pipe.HSet(ctx, c.key("data"), job.ID, updatedData)
			pipe.SRem(ctx, c.key("processing"), jobID)
			pipe.LPush(ctx, c.config.QueueName, job.ID)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return fmt.Errorf("failed to re-queue job %s: %w", jobID, perr)
			}
			c.logger.Info("Job re-queued for retry", "taskId", job.Payload.TaskID, "attempt", job.Attempts, "maxRetries", job.MaxRetries)
			return nil
		}

		c.markFinished(ctx, jobID, "failed", "errors", map[string]interface{}{
			"taskId":   job.Payload.TaskID,
			"error":    err.Error(),
			"attempts": job.Attempts,
		})
		return nil
	}

	c.markFinished(ctx, jobID, "completed", "results", processResult)
	return nil
}

func (c *RedisConsumer) markProcessing(ctx context.Context, jobID string) {
	if err := c.client.SAdd(ctx, c.key("processing"), jobID).Err(); err != nil {
		c.logger.Warn("Failed to mark job processing", "jobId", jobID, "error", err.Error())
	}
}

// markFinished moves the job from the processing set to set, stores the
// outcome in the hash named by outcomeKey and drops the job body.
func (c *RedisConsumer) markFinished(ctx context.Context, jobID, set, outcomeKey string, outcome interface{}) {
	data, _ := json.Marshal(outcome)

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.key("processing"), jobID)
	pipe.SAdd(ctx, c.key(set), jobID)
	pipe.HSet(ctx, c.key(outcomeKey), jobID, data)
	pipe.HDel(ctx, c.key("data"), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to record job outcome", "jobId", jobID, "set", set, "error", err.Error())
	}
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.config.QueueName)
	processing := pipe.SCard(ctx, c.key("processing"))
	completed := pipe.SCard(ctx, c.key("completed"))
	failed := pipe.SCard(ctx, c.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}
