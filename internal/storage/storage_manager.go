/**
 * Storage Manager for the OCRR Worker
 *
 * Coordinates the stores a finished task touches:
 * - MongoDB: upload file status, client webhooks, OCRR workspace queue
 * - PostgreSQL: redaction job tracking
 * - MinIO (optional): report archive
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
)

const defaultSetupTimeout = 15 * time.Second

type jobStore interface {
	UpdateJobStatus(ctx context.Context, update *JobUpdate) error
	GetJobByID(ctx context.Context, jobID string) (*Job, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type taskRecords interface {
	UpdateFileDetails(ctx context.Context, taskID, status, message string) error
	FindFileDetails(ctx context.Context, taskID string) (*FileDetails, error)
	FindWebhook(ctx context.Context, clientID string) (*Webhook, error)
	DeleteWorkspaceTask(ctx context.Context, taskID string) error
	CountWorkspaceTasks(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type reportArchive interface {
	ArchiveReport(ctx context.Context, key, localPath string) error
	Ping(ctx context.Context) error
}

// ManagerConfig holds settings for every store
type ManagerConfig struct {
	PostgresURL string
	Mongo       *MongoConfig
	MinIO       *MinIOConfig
}

// StorageManager coordinates PostgreSQL, MongoDB and MinIO operations
type StorageManager struct {
	postgres jobStore
	mongo    taskRecords
	objects  reportArchive
	logger   *logging.Logger
}

// TaskOutcome is everything recorded when a task reaches a terminal status
type TaskOutcome struct {
	TaskID           string
	Status           string
	Message          string
	DocumentType     string
	FieldCount       int
	RectangleCount   int
	ProcessingTimeMs int64
	Room             string
	RoomID           string
	Reports          []string
	Metadata         map[string]interface{}
}

// WebhookTarget is a task's current file record and the URL of its client's webhook
type WebhookTarget struct {
	URL     string
	Details FileDetails
}

// NewStorageManager connects every configured store
func NewStorageManager(cfg *ManagerConfig) (*StorageManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	postgres, err := NewPostgresClient(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSetupTimeout)
	defer cancel()

	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}

	mongo, err := NewMongoClient(cfg.Mongo)
	if err != nil {
		postgres.Close() // Cleanup on failure
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}

	sm := &StorageManager{
		postgres: postgres,
		mongo:    mongo,
		logger:   logging.NewLogger("storage"),
	}

	if cfg.MinIO != nil && cfg.MinIO.Endpoint != "" {
		objects, err := NewObjectStore(ctx, cfg.MinIO)
		if err != nil {
			sm.Close()
			return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
		}
		sm.objects = objects
	} else {
		sm.logger.Warn("MinIO endpoint not configured, reports will not be archived")
	}

	return sm, nil
}

// CompleteTask records a REDACTED or REJECTED outcome.
// Order: upload file status, report archive, job row, workspace entry.
// A missing upload record or a failed archive is logged and skipped.
func (sm *StorageManager) CompleteTask(ctx context.Context, outcome *TaskOutcome) error {
	if outcome == nil || outcome.TaskID == "" {
		return fmt.Errorf("task ID is required")
	}

	log := sm.logger.With("taskId", outcome.TaskID)

	if err := sm.mongo.UpdateFileDetails(ctx, outcome.TaskID, outcome.Status, outcome.Message); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		log.Warn("No upload record for task, file status not updated")
	}

	metadata := make(map[string]interface{}, len(outcome.Metadata)+1)
	for k, v := range outcome.Metadata {
		metadata[k] = v
	}
	if archived := sm.archiveReports(ctx, outcome); len(archived) > 0 {
		metadata["archivedReports"] = archived
	}

	if err := sm.postgres.UpdateJobStatus(ctx, &JobUpdate{
		JobID:            outcome.TaskID,
		Status:           outcome.Status,
		DocumentType:     outcome.DocumentType,
		Message:          outcome.Message,
		FieldCount:       outcome.FieldCount,
		RectangleCount:   outcome.RectangleCount,
		ProcessingTimeMs: outcome.ProcessingTimeMs,
		Reports:          outcome.Reports,
		Metadata:         metadata,
	}); err != nil {
		return err
	}

	return sm.mongo.DeleteWorkspaceTask(ctx, outcome.TaskID)
}

func (sm *StorageManager) archiveReports(ctx context.Context, outcome *TaskOutcome) []string {
	if sm.objects == nil {
		return nil
	}

	var keys []string
	for _, report := range outcome.Reports {
		key := ReportKey(outcome.Room, outcome.RoomID, outcome.Status, report)
		if err := sm.objects.ArchiveReport(ctx, key, report); err != nil {
			sm.logger.Warn("Report archive failed", "taskId", outcome.TaskID, "key", key, "error", err)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// WebhookTarget resolves where a task's status should be posted
func (sm *StorageManager) WebhookTarget(ctx context.Context, taskID string) (*WebhookTarget, error) {
	details, err := sm.mongo.FindFileDetails(ctx, taskID)
	if err != nil {
		return nil, err
	}

	hook, err := sm.mongo.FindWebhook(ctx, details.ClientID)
	if err != nil {
		return nil, err
	}

	return &WebhookTarget{URL: hook.URL, Details: *details}, nil
}

// Ping checks every configured store
func (sm *StorageManager) Ping(ctx context.Context) map[string]error {
	status := map[string]error{
		"postgres": sm.postgres.Ping(ctx),
		"mongo":    sm.mongo.Ping(ctx),
	}
	if sm.objects != nil {
		status["minio"] = sm.objects.Ping(ctx)
	}
	return status
}

// GetStats returns job counts and workspace size
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	jobs, err := sm.postgres.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	workspace, err := sm.mongo.CountWorkspaceTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count workspace tasks: %w", err)
	}

	stats := map[string]interface{}{
		"jobs":      jobs,
		"workspace": workspace,
	}
	if pg, ok := sm.postgres.(*PostgresClient); ok {
		pool := pg.GetStats()
		stats["postgres"] = map[string]interface{}{
			"max_open_connections": pool.MaxOpenConnections,
			"open_connections":     pool.OpenConnections,
			"in_use":               pool.InUse,
			"idle":                 pool.Idle,
			"wait_count":           pool.WaitCount,
			"wait_duration":        pool.WaitDuration.String(),
		}
	}
	return stats, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, mgErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.mongo != nil {
		mgErr = sm.mongo.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if mgErr != nil {
		return fmt.Errorf("failed to close MongoDB: %w", mgErr)
	}

	return nil
}
