package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/adverant/nexus/ocrr-worker/internal/clients"
	workerErrors "github.com/adverant/nexus/ocrr-worker/internal/errors"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
	"github.com/adverant/nexus/ocrr-worker/internal/storage"
)

// fakeOCR lays every word of lines on a grid, 100px per column and 40px per row
type fakeOCR struct {
	lines []string
	err   error
	calls int32
}

func (f *fakeOCR) Text(_ context.Context, _ []byte, _ Pass) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.lines, "\n"), nil
}

func (f *fakeOCR) Tokens(_ context.Context, _ []byte, _ Pass) (redaction.TokenStream, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	var words []OCRWord
	for row, line := range f.lines {
		for col, w := range strings.Fields(line) {
			words = append(words, OCRWord{
				Text:        w,
				Confidence:  0.9,
				BoundingBox: BoundingBox{X: col * 100, Y: row * 40, Width: 80, Height: 30},
			})
		}
	}
	return toTokens(words), nil
}

type fakeQR struct{ boxes []redaction.Rectangle }

func (f fakeQR) Detect(image.Image) ([]redaction.Rectangle, error) { return f.boxes, nil }

type fakeStore struct {
	mu       sync.Mutex
	outcomes []*storage.TaskOutcome
	updates  []*storage.JobUpdate
}

func (f *fakeStore) UpdateJobStatus(_ context.Context, u *storage.JobUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeStore) CompleteTask(_ context.Context, o *storage.TaskOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return nil
}

func (f *fakeStore) WebhookTarget(_ context.Context, taskID string) (*storage.WebhookTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.outcomes {
		if o.TaskID == taskID {
			return &storage.WebhookTarget{
				URL: "http://client.example",
				Details: storage.FileDetails{
					TaskID: taskID, Status: o.Status, TaskResult: o.Message, ClientID: "client-1", UploadDir: "/upload",
				},
			}, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeNotifier struct {
	url  string
	sent *clients.ProcessStatus
}

func (f *fakeNotifier) NotifyStatus(_ context.Context, url string, s *clients.ProcessStatus) error {
	f.url = url
	f.sent = s
	return nil
}

func colourPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func grayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, ocr OCREngine, store *fakeStore, notifier *fakeNotifier) (*DocumentProcessor, string) {
	t.Helper()
	uploadDir := t.TempDir()
	cfg := &ProcessorConfig{
		Engine:           redaction.NewEngine(redaction.ModePermissive, nil),
		OCR:              ocr,
		QR:               fakeQR{},
		UploadDir:        uploadDir,
		CleanupWorkspace: true,
		MaxFileSize:      10 << 20,
	}
	if store != nil {
		cfg.Store = store
	}
	if notifier != nil {
		cfg.Notifier = notifier
		cfg.WebhookEnabled = true
	}
	p, err := NewDocumentProcessor(cfg)
	if err != nil {
		t.Fatalf("NewDocumentProcessor: %v", err)
	}
	return p, uploadDir
}

var cdslLines = []string{
	"CDSL Ventures Limited",
	"PAN No ABCDE1234F",
	"Name : RAHUL KUMAR SHARMA",
}

func TestProcessDocumentRedacted(t *testing.T) {
	ocr := &fakeOCR{lines: cdslLines}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p, uploadDir := newTestProcessor(t, ocr, store, notifier)

	result, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "task-1",
		Filename:   "4567X_page.png",
		MimeType:   "application/octet-stream",
		FileBuffer: colourPNG(t, 100, 80),
		Room:       "room",
		RoomID:     "42",
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Status != redaction.StatusRedacted || result.DocumentType != redaction.DocumentCDSL {
		t.Fatalf("result = %+v", result)
	}
	if !result.Preprocessed {
		t.Error("colour scan was not preprocessed")
	}
	if got := atomic.LoadInt32(&ocr.calls); got != 4 {
		t.Errorf("OCR calls = %d, want 4", got)
	}

	dir := filepath.Join(uploadDir, "room", "42", "Redacted")
	for _, name := range []string{"4567X_page.xml", "4567X-RD_page.xml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing report %s: %v", name, err)
		}
	}

	if len(store.outcomes) != 1 {
		t.Fatalf("outcomes = %d", len(store.outcomes))
	}
	o := store.outcomes[0]
	if o.Status != "REDACTED" || o.DocumentType != "CDSL" || len(o.Reports) != 2 || o.Room != "room" {
		t.Errorf("outcome = %+v", o)
	}

	if !result.Notified || notifier.sent == nil {
		t.Fatal("webhook not sent")
	}
	if notifier.sent.Status != "REDACTED" || notifier.sent.TaskResult != "Successfully Redacted CDSL Document" || notifier.url != "http://client.example" {
		t.Errorf("webhook = %s %+v", notifier.url, notifier.sent)
	}
}

func TestProcessDocumentRejected(t *testing.T) {
	p, uploadDir := newTestProcessor(t, &fakeOCR{lines: []string{"hello world"}}, &fakeStore{}, nil)

	workspace := t.TempDir()
	docPath := filepath.Join(workspace, "room+42+4567X_page.png")
	if err := os.WriteFile(docPath, grayPNG(t, 100, 80), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:    "task-2",
		Filename: "4567X_page.png",
		MimeType: "image/png",
		FilePath: docPath,
		Room:     "room",
		RoomID:   "42",
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Status != redaction.StatusRejected || result.Message != redaction.UnidentifiedMessage {
		t.Fatalf("result = %+v", result)
	}
	if result.Preprocessed {
		t.Error("grayscale scan should not be preprocessed")
	}
	if result.RectangleCount != 1 {
		t.Errorf("rectangles = %d", result.RectangleCount)
	}

	data, err := os.ReadFile(filepath.Join(uploadDir, "room", "42", "Redacted", "4567X_page.xml"))
	if err != nil {
		t.Fatalf("rejected report: %v", err)
	}
	if !strings.Contains(string(data), ",0,0,100,60,0,0,") {
		t.Errorf("rejected block not covering top three quarters: %s", data)
	}

	if _, err := os.Stat(docPath); !os.IsNotExist(err) {
		t.Error("workspace document not removed")
	}
}

func TestProcessDocumentExplicitDirs(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeOCR{lines: []string{"hello"}}, nil, nil)
	redacted := filepath.Join(t.TempDir(), "out")

	result, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:       "task-3",
		Filename:    "scan.png",
		FileBuffer:  grayPNG(t, 10, 10),
		RedactedDir: redacted,
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if len(result.Reports) != 1 || filepath.Dir(result.Reports[0]) != redacted {
		t.Errorf("reports = %v", result.Reports)
	}
}

func TestProcessDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		ocr  *fakeOCR
		req  *ProcessRequest
		want workerErrors.ErrorCode
	}{
		{
			name: "pdf is unsupported",
			ocr:  &fakeOCR{},
			req:  &ProcessRequest{JobID: "t", Filename: "a.pdf", FileBuffer: []byte("%PDF-1.7 ...")},
			want: workerErrors.ErrorUnsupportedFormat,
		},
		{
			name: "no source",
			ocr:  &fakeOCR{},
			req:  &ProcessRequest{JobID: "t", Filename: "a.png"},
			want: workerErrors.ErrorStorageFailed,
		},
		{
			name: "ocr failure",
			ocr:  &fakeOCR{err: errors.New("tessdata missing")},
			req:  &ProcessRequest{JobID: "t", Filename: "a.png", FileBuffer: grayPNG(t, 4, 4)},
			want: workerErrors.ErrorOCRFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t, tt.ocr, nil, nil)
			_, err := p.ProcessDocument(context.Background(), tt.req)
			if got := workerErrors.CodeOf(err); got != tt.want {
				t.Errorf("error code = %q (%v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestRecognizeFiltersDefaultStream(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeOCR{lines: []string{"Name : RAHUL"}}, nil, nil)

	doc, err := p.recognize(context.Background(), "t", nil)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(doc.Raw) != 3 || len(doc.Default) != 2 {
		t.Errorf("raw = %d, default = %d", len(doc.Raw), len(doc.Default))
	}
	if doc.DefaultText != "Name : RAHUL" || doc.RegionalText != "Name : RAHUL" {
		t.Errorf("texts = %q / %q", doc.DefaultText, doc.RegionalText)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	store := &fakeStore{}
	p, _ := newTestProcessor(t, &fakeOCR{}, store, nil)

	err := p.UpdateJobStatus(context.Background(), "t", "FAILED", map[string]interface{}{
		"error":     "boom",
		"errorCode": "OCR_FAILED",
	})
	if err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	u := store.updates[0]
	if u.Status != "FAILED" || u.ErrorCode != "OCR_FAILED" || u.ErrorMessage != "boom" {
		t.Errorf("update = %+v", u)
	}
}

func TestDownloadFileFromURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	p, _ := newTestProcessor(t, &fakeOCR{}, nil, nil)

	data, err := p.downloadFileFromURL(context.Background(), "t", srv.URL+"/doc.png")
	if err != nil || string(data) != "image-bytes" {
		t.Fatalf("download = %q, %v", data, err)
	}

	atomic.StoreInt32(&hits, 0)
	if _, err := p.downloadFileFromURL(context.Background(), "t", srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("404 retried %d times", got)
	}
}

func TestDetectMimeTypeFromMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"tiff", []byte{'I', 'I', 0x2A, 0x00}, "image/tiff"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"bmp", []byte("BM\x00\x00\x00\x00"), "image/bmp"},
		{"pdf", []byte("%PDF-1.4"), "application/pdf"},
		{"short", []byte{0x89}, ""},
		{"text", []byte("hello world"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMimeTypeFromMagicBytes(tt.data); got != tt.want {
				t.Errorf("detect = %q, want %q", got, tt.want)
			}
		})
	}
}
