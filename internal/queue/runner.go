package queue

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/processor"
)

const (
	defaultProcessingTimeout = 5 * time.Minute

	StatusProcessing = "PROCESSING"
	StatusRetrying   = "RETRYING"
	StatusFailed     = "FAILED"
)

// jobRunner is shared by both consumers: it stages the document, bounds the
// run with the processing timeout and records every status change.
type jobRunner struct {
	processor    processor.DocumentProcessorInterface
	events       EventPublisher
	timeout      time.Duration
	workspaceDir string
	logger       *logging.Logger
}

func newJobRunner(p processor.DocumentProcessorInterface, events EventPublisher, timeoutMs int64, workspaceDir string, logger *logging.Logger) *jobRunner {
	timeout := defaultProcessingTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &jobRunner{
		processor:    p,
		events:       events,
		timeout:      timeout,
		workspaceDir: workspaceDir,
		logger:       logger,
	}
}

// run processes one task. finalAttempt decides whether a failure is recorded
// as FAILED or RETRYING.
func (r *jobRunner) run(ctx context.Context, payload *TaskPayload, finalAttempt bool) (*processor.ProcessResult, error) {
	startTime := time.Now()
	payload.normalize()
	taskID := payload.TaskID

	r.logger.Printf("[Job %s] Processing document: name=%s, room=%s/%s", taskID, payload.DocumentName, payload.Room, payload.RoomID)

	if err := r.processor.UpdateJobStatus(ctx, taskID, StatusProcessing, map[string]interface{}{
		"documentName": payload.DocumentName,
		"room":         payload.Room,
		"roomID":       payload.RoomID,
	}); err != nil {
		r.logger.Printf("[Job %s] Warning: Failed to update status to processing: %v", taskID, err)
	}
	r.publish(ctx, NewStatusEvent(taskID, StatusProcessing))

	workspacePath, err := r.stage(payload)
	if err != nil {
		return nil, r.fail(ctx, payload, workerErrors.NewStorageFailedError(taskID, err), startTime, finalAttempt)
	}

	r.logger.Printf("[Job %s] Processing timeout set to: %v", taskID, r.timeout)
	processCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.processor.ProcessDocument(processCtx, payload.request(workspacePath))
	if err != nil {
		// a retry stages a fresh copy
		r.unstage(taskID, workspacePath)
		if processCtx.Err() == context.DeadlineExceeded {
			r.logger.Printf("[Job %s] Processing timed out after %v (timeout: %v)", taskID, time.Since(startTime), r.timeout)
			err = workerErrors.NewProcessingTimeoutError(taskID, r.timeout, err)
		}
		return nil, r.fail(ctx, payload, err, startTime, finalAttempt)
	}

	r.logger.Printf("[Job %s] Processing completed in %v: status=%s, type=%s",
		taskID, time.Since(startTime), result.Status, result.DocumentType)

	event := NewStatusEvent(taskID, string(result.Status))
	event.DocumentType = string(result.DocumentType)
	event.Message = result.Message
	event.ProcessingTimeMs = result.ProcessingTimeMs
	r.publish(ctx, event)

	return result, nil
}

// fail records the failure and returns err unchanged
func (r *jobRunner) fail(ctx context.Context, payload *TaskPayload, err error, startTime time.Time, finalAttempt bool) error {
	status := StatusFailed
	if !finalAttempt && workerErrors.IsRetryable(err) {
		status = StatusRetrying
	}
	duration := time.Since(startTime)

	r.logger.Printf("[Job %s] Processing failed after %v (%s): %v", payload.TaskID, duration, status, err)

	metadata := map[string]interface{}{
		"error":          err.Error(),
		"processingTime": duration.Milliseconds(),
	}
	if code := workerErrors.CodeOf(err); code != "" {
		metadata["errorCode"] = string(code)
	}
	if updateErr := r.processor.UpdateJobStatus(ctx, payload.TaskID, status, metadata); updateErr != nil {
		r.logger.Printf("[Job %s] Warning: Failed to update status to %s: %v", payload.TaskID, status, updateErr)
	}

	event := NewStatusEvent(payload.TaskID, status)
	event.Error = err.Error()
	event.ProcessingTimeMs = duration.Milliseconds()
	r.publish(ctx, event)

	return err
}

func (r *jobRunner) publish(ctx context.Context, event *StatusEvent) {
	if err := r.events.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish status event", "taskId", event.TaskID, "status", event.Status, "error", err.Error())
	}
}

// stage copies the uploaded document into the workspace as
// <room>+<roomID>+<name>. Without a workspace or a document path there is
// nothing to stage and the processor reads the buffer or URL.
func (r *jobRunner) stage(payload *TaskPayload) (string, error) {
	if payload.DocumentPath == "" {
		return "", nil
	}
	if r.workspaceDir == "" {
		return payload.DocumentPath, nil
	}

	if err := os.MkdirAll(r.workspaceDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	dst := filepath.Join(r.workspaceDir, payload.WorkspaceName())
	if err := copyFile(payload.DocumentPath, dst); err != nil {
		return "", fmt.Errorf("failed to copy document to workspace: %w", err)
	}
	return dst, nil
}

// unstage removes a workspace copy made by stage; the uploaded original is kept
func (r *jobRunner) unstage(taskID, workspacePath string) {
	if r.workspaceDir == "" || workspacePath == "" {
		return
	}
	if err := os.Remove(workspacePath); err != nil && !os.IsNotExist(err) {
		r.logger.Printf("[Job %s] Warning: Failed to remove workspace document %s: %v", taskID, workspacePath, err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
