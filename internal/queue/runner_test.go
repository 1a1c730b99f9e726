package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/processor"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

type statusUpdate struct {
	status   string
	metadata map[string]interface{}
}

type fakeProcessor struct {
	mu       sync.Mutex
	process  func(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error)
	requests []*processor.ProcessRequest
	updates  []statusUpdate
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.process(ctx, req)
}

func (f *fakeProcessor) UpdateJobStatus(_ context.Context, _ string, status string, metadata map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{status, metadata})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*StatusEvent
	closed bool
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e *StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func (r *recordingPublisher) statuses() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

func newTestRunner(p *fakeProcessor, events EventPublisher, timeoutMs int64, workspace string) *jobRunner {
	return newJobRunner(p, events, timeoutMs, workspace, logging.NewLogger("queue-test"))
}

func TestRunnerSuccess(t *testing.T) {
	upload := t.TempDir()
	docPath := filepath.Join(upload, "room", "42", "4567X_page.jpg")
	if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(docPath, []byte("scan"), 0o644); err != nil {
		t.Fatal(err)
	}
	workspace := filepath.Join(t.TempDir(), "ws")

	proc := &fakeProcessor{process: func(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return &processor.ProcessResult{
			TaskID:       req.JobID,
			Status:       redaction.StatusRedacted,
			DocumentType: redaction.DocumentPAN,
			Message:      "Successfully Redacted PAN Card Document",
		}, nil
	}}
	events := &recordingPublisher{}
	r := newTestRunner(proc, events, 0, workspace)

	result, err := r.run(context.Background(), &TaskPayload{TaskID: "t1", DocumentPath: docPath}, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != redaction.StatusRedacted {
		t.Errorf("result = %+v", result)
	}

	req := proc.requests[0]
	wantPath := filepath.Join(workspace, "room+42+4567X_page.jpg")
	if req.FilePath != wantPath || req.Filename != "4567X_page.jpg" || req.Room != "room" || req.RoomID != "42" {
		t.Errorf("request = %+v", req)
	}
	if data, err := os.ReadFile(wantPath); err != nil || string(data) != "scan" {
		t.Errorf("workspace copy = %q, %v", data, err)
	}

	if len(proc.updates) != 1 || proc.updates[0].status != StatusProcessing {
		t.Errorf("updates = %+v", proc.updates)
	}
	got := events.statuses()
	if len(got) != 2 || got[0] != StatusProcessing || got[1] != "REDACTED" {
		t.Errorf("events = %v", got)
	}
	if last := events.events[1]; last.Event != "task:redacted" || last.DocumentType != "PAN" {
		t.Errorf("event = %+v", last)
	}
}

func TestRunnerFailureStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		final bool
		want  string
	}{
		{"retryable, more attempts", workerErrors.NewStorageFailedError("t", errors.New("db down")), false, StatusRetrying},
		{"retryable, last attempt", workerErrors.NewStorageFailedError("t", errors.New("db down")), true, StatusFailed},
		{"bad input", workerErrors.NewUnsupportedFormatError("t", "application/pdf"), false, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
				return nil, tt.err
			}}
			events := &recordingPublisher{}
			r := newTestRunner(proc, events, 0, "")

			_, err := r.run(context.Background(), &TaskPayload{TaskID: "t", FileBuffer: []byte("x")}, tt.final)
			if err != tt.err {
				t.Fatalf("err = %v", err)
			}

			last := proc.updates[len(proc.updates)-1]
			if last.status != tt.want || last.metadata["errorCode"] != string(workerErrors.CodeOf(tt.err)) {
				t.Errorf("update = %+v", last)
			}
			if e := events.events[len(events.events)-1]; e.Status != tt.want || e.Error == "" {
				t.Errorf("event = %+v", e)
			}
		})
	}
}

func TestRunnerFailureRemovesWorkspaceCopy(t *testing.T) {
	upload := t.TempDir()
	docPath := filepath.Join(upload, "room", "42", "4567X_page.jpg")
	if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(docPath, []byte("scan"), 0o644); err != nil {
		t.Fatal(err)
	}
	workspace := t.TempDir()

	proc := &fakeProcessor{process: func(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return nil, workerErrors.NewOCRFailedError(req.JobID, "default text", errors.New("tesseract exited"))
	}}
	r := newTestRunner(proc, nil, 0, workspace)

	for _, final := range []bool{false, true} {
		if _, err := r.run(context.Background(), &TaskPayload{TaskID: "t1", DocumentPath: docPath}, final); err == nil {
			t.Fatal("expected error")
		}
		staged := filepath.Join(workspace, "room+42+4567X_page.jpg")
		if _, err := os.Stat(staged); !os.IsNotExist(err) {
			t.Errorf("final=%v: workspace copy left behind: %v", final, err)
		}
		if _, err := os.Stat(docPath); err != nil {
			t.Errorf("final=%v: upload removed: %v", final, err)
		}
	}
	if len(proc.requests) != 2 || proc.requests[1].FilePath != filepath.Join(workspace, "room+42+4567X_page.jpg") {
		t.Errorf("requests = %+v", proc.requests)
	}
}

func TestRunnerTimeout(t *testing.T) {
	proc := &fakeProcessor{process: func(ctx context.Context, _ *processor.ProcessRequest) (*processor.ProcessResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRunner(proc, nil, 20, "")

	start := time.Now()
	_, err := r.run(context.Background(), &TaskPayload{TaskID: "slow"}, true)
	if workerErrors.CodeOf(err) != workerErrors.ErrorProcessingTimeout {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not applied")
	}
}

func TestRunnerStageFailure(t *testing.T) {
	proc := &fakeProcessor{process: func(context.Context, *processor.ProcessRequest) (*processor.ProcessResult, error) {
		t.Fatal("processor called without a staged document")
		return nil, nil
	}}
	r := newTestRunner(proc, nil, 0, t.TempDir())

	_, err := r.run(context.Background(), &TaskPayload{TaskID: "t", DocumentPath: "/does/not/exist.jpg"}, true)
	if workerErrors.CodeOf(err) != workerErrors.ErrorStorageFailed {
		t.Errorf("err = %v", err)
	}
}

func TestRunnerPublishErrorsAreNotFatal(t *testing.T) {
	proc := &fakeProcessor{process: func(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
		return &processor.ProcessResult{TaskID: req.JobID, Status: redaction.StatusRejected}, nil
	}}
	r := newTestRunner(proc, &recordingPublisher{err: errors.New("redis gone")}, 0, "")

	if _, err := r.run(context.Background(), &TaskPayload{TaskID: "t", FileBuffer: []byte("x")}, true); err != nil {
		t.Errorf("run: %v", err)
	}
}

type fakeKafkaWriter struct {
	messages []kafka.Message
	closed   bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEventPublisher(t *testing.T) {
	w := &fakeKafkaWriter{}
	p := &KafkaEventPublisher{writer: w}

	if err := p.Publish(context.Background(), NewStatusEvent("task-9", "REJECTED")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.messages) != 1 || string(w.messages[0].Key) != "task-9" {
		t.Fatalf("messages = %+v", w.messages)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Error("writer not closed")
	}

	if _, err := NewKafkaEventPublisher(nil, "topic"); err == nil {
		t.Error("expected error without brokers")
	}
}

func TestMultiPublisher(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("down")}
	m := MultiPublisher{failing, ok}

	if err := m.Publish(context.Background(), NewStatusEvent("t", "FAILED")); err == nil {
		t.Error("expected the failing publisher's error")
	}
	if len(ok.events) != 1 {
		t.Error("later publisher skipped after an error")
	}
	if err := m.Close(); err != nil || !ok.closed || !failing.closed {
		t.Error("publishers not closed")
	}
	if EventsChannel("ocrr:jobs") != "ocrr:jobs:events" {
		t.Error("events channel")
	}
}

func TestRetryDelay(t *testing.T) {
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for n, d := range want {
		if got := retryDelay(n, nil, nil); got != d {
			t.Errorf("retryDelay(%d) = %v, want %v", n, got, d)
		}
	}
}

func TestRedisConsumerRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	done := make(chan string, 1)
	proc := &fakeProcessor{process: func(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
		done <- req.JobID
		return &processor.ProcessResult{TaskID: req.JobID, Status: redaction.StatusRejected}, nil
	}}

	c, err := NewRedisConsumer(&RedisConsumerConfig{
		RedisURL:    url,
		QueueName:   "ocrr:test:" + time.Now().Format("150405.000"),
		Concurrency: 1,
		Processor:   proc,
	})
	if err != nil {
		t.Fatalf("NewRedisConsumer: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if _, err := c.Enqueue(context.Background(), &TaskPayload{TaskID: "rt-1", FileBuffer: []byte("x")}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case id := <-done:
		if id != "rt-1" {
			t.Errorf("processed %q", id)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("job not processed")
	}
}
