/**
 * PostgreSQL Client for the OCRR Worker
 *
 * Tracks one row per redaction task in ocrr.redaction_jobs.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	DocumentType     string
	Message          string
	FieldCount       int
	RectangleCount   int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Reports          []string
	Metadata         map[string]interface{}
}

// Job is a stored redaction task row
type Job struct {
	ID               string                 `json:"id"`
	TaskID           string                 `json:"taskId"`
	Status           string                 `json:"status"`
	DocumentType     string                 `json:"documentType,omitempty"`
	Message          string                 `json:"message,omitempty"`
	FieldCount       int                    `json:"fieldCount"`
	RectangleCount   int                    `json:"rectangleCount"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
	ErrorCode        string                 `json:"errorCode,omitempty"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	Reports          []string               `json:"reports"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

var (
	nullEscapePattern    = regexp.MustCompile(`\\u0000`)
	controlEscapePattern = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS ocrr;
	CREATE TABLE IF NOT EXISTS ocrr.redaction_jobs (
		id                 UUID PRIMARY KEY,
		task_id            TEXT NOT NULL UNIQUE,
		status             TEXT NOT NULL,
		document_type      TEXT,
		message            TEXT,
		field_count        INTEGER NOT NULL DEFAULT 0,
		rectangle_count    INTEGER NOT NULL DEFAULT 0,
		processing_time_ms BIGINT,
		error_code         TEXT,
		error_message      TEXT,
		reports            TEXT[] NOT NULL DEFAULT '{}',
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS redaction_jobs_status_idx ON ocrr.redaction_jobs (status);
`

// EnsureSchema creates the ocrr schema and task table when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus creates or updates the task row. Empty fields keep the stored value.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadata := update.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	// The worker may see a task before the upload service has written anything,
	// so the first status update creates the row.
	query := `
		INSERT INTO ocrr.redaction_jobs (
			id, task_id, status, document_type, message,
			field_count, rectangle_count, processing_time_ms,
			error_code, error_message, reports, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, NULLIF($4, ''), NULLIF($5, ''),
			$6, $7, NULLIF($8, 0),
			NULLIF($9, ''), NULLIF($10, ''), $11,
			COALESCE($12::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			document_type = COALESCE(EXCLUDED.document_type, ocrr.redaction_jobs.document_type),
			message = COALESCE(EXCLUDED.message, ocrr.redaction_jobs.message),
			field_count = GREATEST(EXCLUDED.field_count, ocrr.redaction_jobs.field_count),
			rectangle_count = GREATEST(EXCLUDED.rectangle_count, ocrr.redaction_jobs.rectangle_count),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, ocrr.redaction_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			reports = CASE
				WHEN cardinality(EXCLUDED.reports) > 0 THEN EXCLUDED.reports
				ELSE ocrr.redaction_jobs.reports
			END,
			metadata = ocrr.redaction_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	reports := update.Reports
	if reports == nil {
		reports = []string{}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		uuid.New().String(),     // $1 - id (only used on insert)
		update.JobID,            // $2 - task_id
		update.Status,           // $3 - status
		update.DocumentType,     // $4 - document_type
		update.Message,          // $5 - message
		update.FieldCount,       // $6 - field_count
		update.RectangleCount,   // $7 - rectangle_count
		update.ProcessingTimeMs, // $8 - processing_time_ms
		update.ErrorCode,        // $9 - error_code
		update.ErrorMessage,     // $10 - error_message
		pq.Array(reports),       // $11 - reports
		metadataJSON,            // $12 - metadata
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (task=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJobByID retrieves a task row by task ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id,
			task_id,
			status,
			document_type,
			message,
			field_count,
			rectangle_count,
			processing_time_ms,
			error_code,
			error_message,
			reports,
			metadata,
			created_at,
			updated_at
		FROM ocrr.redaction_jobs
		WHERE task_id = $1
	`

	var (
		job                     Job
		documentType, message   sql.NullString
		errorCode, errorMessage sql.NullString
		processingTimeMs        sql.NullInt64
		reports                 pq.StringArray
		metadataJSON            []byte
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.TaskID, &job.Status, &documentType, &message,
		&job.FieldCount, &job.RectangleCount, &processingTimeMs,
		&errorCode, &errorMessage, &reports, &metadataJSON,
		&job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	job.DocumentType = documentType.String
	job.Message = message.String
	job.ErrorCode = errorCode.String
	job.ErrorMessage = errorMessage.String
	job.ProcessingTimeMs = processingTimeMs.Int64
	job.Reports = []string(reports)

	return &job, nil
}

// CountByStatus returns the number of task rows per status
func (p *PostgresClient) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ocrr.redaction_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects.
// \u0000 is dropped; other control-character escapes become a space.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscapePattern.ReplaceAll(jsonBytes, []byte{})
	return controlEscapePattern.ReplaceAll(result, []byte(" "))
}
