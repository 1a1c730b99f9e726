/**
 * Document Processor for the OCRR Worker
 *
 * Orchestrates one redaction task end to end:
 * - load and validate the scanned image
 * - grayscale check and preprocessing
 * - concurrent OCR passes and QR detection
 * - classification and field redaction
 * - XML reports, task stores, webhook, workspace cleanup
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/ocrr-worker/internal/clients"
	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
	"github.com/adverant/nexus/ocrr-worker/internal/report"
	"github.com/adverant/nexus/ocrr-worker/internal/storage"
)

const redactedDirName = "Redacted"

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// TaskStore records task progress and outcomes
type TaskStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	CompleteTask(ctx context.Context, outcome *storage.TaskOutcome) error
	WebhookTarget(ctx context.Context, taskID string) (*storage.WebhookTarget, error)
}

// StatusNotifier delivers the final task status to the uploading client
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, baseURL string, status *clients.ProcessStatus) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Engine  *redaction.Engine
	OCR     OCREngine
	QR      QRDetector
	Reports *report.Writer

	// Store and Notifier are optional; without them the processor only writes reports
	Store          TaskStore
	Notifier       StatusNotifier
	WebhookEnabled bool

	// UploadDir roots the <room>/<roomID>/Redacted output directory for
	// requests that do not name one
	UploadDir string
	// CleanupWorkspace deletes the workspace copy of the document once reported
	CleanupWorkspace bool
	MaxFileSize      int64

	Logger *logging.Logger
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID    string // task ID assigned by the upload service
	Filename string // original document name, used for report names and IDs
	MimeType string
	FileSize int64

	// File sources in order of preference
	FileBuffer []byte
	FilePath   string
	FileURL    string

	Room        string
	RoomID      string
	RedactedDir string // receives both REDACTED and REJECTED reports

	Metadata map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	TaskID           string
	Status           redaction.Status
	DocumentType     redaction.DocumentType
	Message          string
	FieldCount       int
	RectangleCount   int
	QRCodes          int
	Preprocessed     bool
	Reports          []string
	Notified         bool
	ProcessingTimeMs int64
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config   *ProcessorConfig
	engine   *redaction.Engine
	ocr      OCREngine
	qr       QRDetector
	reports  *report.Writer
	store    TaskStore
	notifier StatusNotifier
	logger   *logging.Logger
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Engine == nil {
		return nil, fmt.Errorf("redaction engine is required")
	}

	if cfg.OCR == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}

	qr := cfg.QR
	if qr == nil {
		qr = NewZXingQRDetector()
	}

	reports := cfg.Reports
	if reports == nil {
		reports = report.NewWriter(logger)
	}

	if cfg.Store == nil {
		logger.Warn("Task store not configured, task status will not be recorded")
	}

	if cfg.WebhookEnabled && (cfg.Notifier == nil || cfg.Store == nil) {
		logger.Warn("Webhook enabled without notifier or task store, notifications disabled")
		cfg.WebhookEnabled = false
	}

	return &DocumentProcessor{
		config:   cfg,
		engine:   cfg.Engine,
		ocr:      cfg.OCR,
		qr:       qr,
		reports:  reports,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		logger:   logger,
	}, nil
}

// ProcessDocument processes a document through the complete pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()

	// Step 1: Load file
	p.logger.Printf("[Job %s] Step 1: Loading file %s", req.JobID, req.Filename)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, workerErrors.NewStorageFailedError(req.JobID, err)
	}

	// Step 2: Validate size and format
	if p.config.MaxFileSize > 0 && int64(len(fileData)) > p.config.MaxFileSize {
		return nil, workerErrors.NewUnsupportedFormatError(req.JobID,
			fmt.Sprintf("%s (%d bytes exceeds limit of %d)", req.MimeType, len(fileData), p.config.MaxFileSize))
	}

	detected := detectMimeTypeFromMagicBytes(fileData)
	if detected != "" && detected != req.MimeType {
		p.logger.Printf("[Job %s] MIME type corrected from %q to %q by magic bytes", req.JobID, req.MimeType, detected)
		req.MimeType = detected
	}
	if !isSupportedImage(req.MimeType) {
		return nil, workerErrors.NewUnsupportedFormatError(req.JobID, req.MimeType)
	}

	// Step 3: Decode
	p.logger.Printf("[Job %s] Step 3: Decoding %s (%d bytes)", req.JobID, req.MimeType, len(fileData))
	img, err := decodeImage(fileData)
	if err != nil {
		return nil, workerErrors.NewUnsupportedFormatError(req.JobID, req.MimeType)
	}
	bounds := img.Bounds()

	// Step 4: Preprocess colour scans
	ocrInput := fileData
	preprocessed := false
	if !IsGrayscale(img) {
		p.logger.Printf("[Job %s] Step 4: Preprocessing colour scan %dx%d", req.JobID, bounds.Dx(), bounds.Dy())
		ocrInput, err = encodePNG(Sharpen(img))
		if err != nil {
			return nil, workerErrors.NewOCRFailedError(req.JobID, "preprocess", err)
		}
		preprocessed = true
	} else {
		p.logger.Printf("[Job %s] Step 4: Grayscale scan, preprocessing skipped", req.JobID)
	}

	// Step 5: OCR passes
	p.logger.Printf("[Job %s] Step 5: Running OCR passes", req.JobID)
	doc, err := p.recognize(ctx, req.JobID, ocrInput)
	if err != nil {
		return nil, err
	}
	doc.Width = bounds.Dx()
	doc.Height = bounds.Dy()

	// Step 6: QR codes
	qrCodes, err := p.qr.Detect(img)
	if err != nil {
		p.logger.Printf("[Job %s] WARNING: QR detection failed: %v", req.JobID, err)
	}
	doc.QRCodes = qrCodes
	p.logger.Printf("[Job %s] OCR complete: default=%d, raw=%d, regional=%d tokens, qr=%d",
		req.JobID, len(doc.Default), len(doc.Raw), len(doc.Regional), len(qrCodes))

	// Step 7: Classify and redact
	p.logger.Printf("[Job %s] Step 7: Classifying and redacting", req.JobID)
	decision := p.engine.Redact(doc)
	p.logger.Printf("[Job %s] Decision: status=%s, type=%s, message=%q",
		req.JobID, decision.Status, decision.DocumentType, decision.Message)

	// Step 8: Reports
	p.logger.Printf("[Job %s] Step 8: Writing reports", req.JobID)
	reports, err := p.writeReports(req, &decision, doc.Width, doc.Height)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		TaskID:         req.JobID,
		Status:         decision.Status,
		DocumentType:   decision.DocumentType,
		Message:        decision.Message,
		FieldCount:     len(decision.Fields),
		RectangleCount: len(decision.Rectangles()),
		QRCodes:        len(qrCodes),
		Preprocessed:   preprocessed,
		Reports:        reports,
	}
	if decision.Status == redaction.StatusRejected {
		result.RectangleCount = 1
	}

	// Step 9: Task stores
	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	if p.store != nil {
		p.logger.Printf("[Job %s] Step 9: Recording task outcome", req.JobID)
		if err := p.store.CompleteTask(ctx, &storage.TaskOutcome{
			TaskID:           req.JobID,
			Status:           string(decision.Status),
			Message:          decision.Message,
			DocumentType:     string(decision.DocumentType),
			FieldCount:       result.FieldCount,
			RectangleCount:   result.RectangleCount,
			ProcessingTimeMs: result.ProcessingTimeMs,
			Room:             req.Room,
			RoomID:           req.RoomID,
			Reports:          reports,
			Metadata: map[string]interface{}{
				"documentName": req.Filename,
				"mimeType":     req.MimeType,
				"fileSize":     len(fileData),
				"preprocessed": preprocessed,
				"qrCodes":      len(qrCodes),
				"mode":         p.engine.Mode().String(),
			},
		}); err != nil {
			return nil, workerErrors.NewStorageFailedError(req.JobID, err)
		}
	}

	// Step 10: Workspace cleanup
	if p.config.CleanupWorkspace && req.FilePath != "" {
		if err := os.Remove(req.FilePath); err != nil && !os.IsNotExist(err) {
			p.logger.Printf("[Job %s] WARNING: Failed to remove workspace document %s: %v", req.JobID, req.FilePath, err)
		}
	}

	// Step 11: Webhook
	if p.config.WebhookEnabled {
		result.Notified = p.notify(ctx, req.JobID)
	}

	p.logger.Printf("[Job %s] Processing pipeline complete: status=%s, fields=%d, rectangles=%d, time=%dms",
		req.JobID, result.Status, result.FieldCount, result.RectangleCount, result.ProcessingTimeMs)

	return result, nil
}

// recognize runs the default and regional passes concurrently and assembles the document
func (p *DocumentProcessor) recognize(ctx context.Context, jobID string, image []byte) (*redaction.Document, error) {
	var (
		doc     redaction.Document
		raw     redaction.TokenStream
		defText string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := p.ocr.Text(gctx, image, PassDefault)
		if err != nil {
			return workerErrors.NewOCRFailedError(jobID, "default text", err)
		}
		defText = text
		return nil
	})
	g.Go(func() error {
		tokens, err := p.ocr.Tokens(gctx, image, PassDefault)
		if err != nil {
			return workerErrors.NewOCRFailedError(jobID, "default tokens", err)
		}
		raw = tokens
		return nil
	})
	g.Go(func() error {
		text, err := p.ocr.Text(gctx, image, PassRegional)
		if err != nil {
			return workerErrors.NewOCRFailedError(jobID, "regional text", err)
		}
		doc.RegionalText = text
		return nil
	})
	g.Go(func() error {
		tokens, err := p.ocr.Tokens(gctx, image, PassRegional)
		if err != nil {
			return workerErrors.NewOCRFailedError(jobID, "regional tokens", err)
		}
		doc.Regional = tokens
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc.DefaultText = defText
	doc.Raw = raw
	doc.Default = filterTokens(raw, hasWordRune)
	return &doc, nil
}

// writeReports writes the REJECTED block or the REDACTED report pair. Both go
// to the redacted directory, where the downstream viewer reads them.
func (p *DocumentProcessor) writeReports(req *ProcessRequest, decision *redaction.Decision, width, height int) ([]string, error) {
	dir := p.outputDir(req)
	if decision.Status == redaction.StatusRejected {
		path, err := p.reports.WriteRejected(dir, req.Filename, redaction.RejectedRegion(width, height))
		if err != nil {
			return nil, workerErrors.NewReportFailedError(req.JobID, dir, err)
		}
		return []string{path}, nil
	}

	paths, err := p.reports.WriteRedacted(dir, req.Filename, decision)
	if err != nil {
		return nil, workerErrors.NewReportFailedError(req.JobID, dir, err)
	}
	return paths, nil
}

// outputDir returns the request's report directory, or <upload>/<room>/<roomID>/Redacted
func (p *DocumentProcessor) outputDir(req *ProcessRequest) string {
	if req.RedactedDir != "" {
		return req.RedactedDir
	}
	return filepath.Join(p.config.UploadDir, req.Room, req.RoomID, redactedDirName)
}

// notify posts the recorded task status to the client's webhook.
// Failures are logged; the reports are already final.
func (p *DocumentProcessor) notify(ctx context.Context, jobID string) bool {
	target, err := p.store.WebhookTarget(ctx, jobID)
	if err != nil {
		p.logger.Printf("[Job %s] WARNING: No webhook target: %v", jobID, err)
		return false
	}

	d := target.Details
	if err := p.notifier.NotifyStatus(ctx, target.URL, &clients.ProcessStatus{
		TaskID:     d.TaskID,
		Status:     d.Status,
		TaskResult: d.TaskResult,
		ClientID:   d.ClientID,
		UploadDir:  d.UploadDir,
	}); err != nil {
		notifyErr := workerErrors.NewNotifyFailedError(jobID, target.URL, err)
		p.logger.Error("Webhook delivery failed", "taskId", jobID, "error", notifyErr.Error())
		return false
	}
	return true
}

// UpdateJobStatus updates job status in the task store
func (p *DocumentProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	if p.store == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if errorCode, ok := metadata["errorCode"].(string); ok {
			update.ErrorCode = errorCode
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadFile loads file from buffer, workspace path or URL
func (p *DocumentProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	// If buffer is provided, use it directly
	if len(req.FileBuffer) > 0 {
		p.logger.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FilePath != "" {
		fileData, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read workspace document: %w", err)
		}
		p.logger.Printf("[Job %s] Read workspace document %s (%d bytes)", req.JobID, req.FilePath, len(fileData))
		return fileData, nil
	}

	// If URL is provided, download it
	if req.FileURL != "" {
		p.logger.Printf("[Job %s] Downloading file from URL: %s (fileSize=%d)", req.JobID, req.FileURL, req.FileSize)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		p.logger.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer, path or URL)")
}

// downloadFileFromURL downloads a file with exponential backoff between attempts
func (p *DocumentProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	const (
		maxRetries        = 5
		initialBackoffMs  = 1000
		maxBackoffMs      = 32000
		downloadTimeoutMs = 120000
	)

	client := &http.Client{
		Timeout: time.Duration(downloadTimeoutMs) * time.Millisecond,
	}

	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-2)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			p.logger.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		data, retry, err := fetch(ctx, client, fileURL, p.config.MaxFileSize)
		if err == nil {
			return data, nil
		}
		lastErr = err
		p.logger.Printf("[Job %s] Download attempt %d/%d failed: %v", jobID, attempt, maxRetries, err)
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("download failed after retries: %w", lastErr)
}

// fetch performs one GET. retry is false for client errors that will not change.
func fetch(ctx context.Context, client *http.Client, url string, limit int64) (data []byte, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return nil, false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err = io.ReadAll(body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read body: %w", err)
	}
	return data, false, nil
}

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

func isSupportedImage(mimeType string) bool {
	return supportedImageTypes[mimeType]
}

// detectMimeTypeFromMagicBytes identifies the file format from its leading bytes
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: 'I' 'I' 0x2A 0x00 (little-endian) or 'M' 'M' 0x00 0x2A (big-endian)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// ZIP and Office documents
	if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return "application/zip"
	}

	return ""
}
