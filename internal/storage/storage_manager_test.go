package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
)

type fakeJobs struct {
	updates []*JobUpdate
	err     error
}

func (f *fakeJobs) UpdateJobStatus(_ context.Context, u *JobUpdate) error {
	f.updates = append(f.updates, u)
	return f.err
}
func (f *fakeJobs) GetJobByID(context.Context, string) (*Job, error) { return nil, nil }
func (f *fakeJobs) CountByStatus(context.Context) (map[string]int64, error) {
	return map[string]int64{"REDACTED": 2}, nil
}
func (f *fakeJobs) Ping(context.Context) error { return nil }
func (f *fakeJobs) Close() error               { return nil }

type fakeRecords struct {
	calls     []string
	updateErr error
	details   map[string]*FileDetails
	hooks     map[string]*Webhook
}

func (f *fakeRecords) UpdateFileDetails(_ context.Context, taskID, status, message string) error {
	f.calls = append(f.calls, fmt.Sprintf("update %s %s %s", taskID, status, message))
	return f.updateErr
}
func (f *fakeRecords) FindFileDetails(_ context.Context, taskID string) (*FileDetails, error) {
	if d, ok := f.details[taskID]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}
func (f *fakeRecords) FindWebhook(_ context.Context, clientID string) (*Webhook, error) {
	if h, ok := f.hooks[clientID]; ok {
		return h, nil
	}
	return nil, ErrNotFound
}
func (f *fakeRecords) DeleteWorkspaceTask(_ context.Context, taskID string) error {
	f.calls = append(f.calls, "delete "+taskID)
	return nil
}
func (f *fakeRecords) CountWorkspaceTasks(context.Context) (int64, error) { return 3, nil }
func (f *fakeRecords) Ping(context.Context) error                         { return nil }
func (f *fakeRecords) Close() error                                       { return nil }

type fakeArchive struct {
	keys []string
	fail bool
}

func (f *fakeArchive) ArchiveReport(_ context.Context, key, _ string) error {
	if f.fail {
		return errors.New("bucket unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}
func (f *fakeArchive) Ping(context.Context) error { return nil }

func newTestManager(jobs *fakeJobs, records *fakeRecords, archive reportArchive) *StorageManager {
	return &StorageManager{postgres: jobs, mongo: records, objects: archive, logger: logging.NewLogger("storage-test")}
}

func TestCompleteTask(t *testing.T) {
	jobs := &fakeJobs{}
	records := &fakeRecords{}
	archive := &fakeArchive{}
	sm := newTestManager(jobs, records, archive)

	err := sm.CompleteTask(context.Background(), &TaskOutcome{
		TaskID:       "task-1",
		Status:       "REDACTED",
		Message:      "Successfully Redacted PAN Card Document",
		DocumentType: "PAN",
		FieldCount:   4,
		Room:         "room",
		RoomID:       "42",
		Reports:      []string{"/upload/room/42/Redacted/4567X_page.xml"},
	})
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	wantCalls := []string{"update task-1 REDACTED Successfully Redacted PAN Card Document", "delete task-1"}
	if fmt.Sprint(records.calls) != fmt.Sprint(wantCalls) {
		t.Errorf("mongo calls = %v, want %v", records.calls, wantCalls)
	}
	if len(archive.keys) != 1 || archive.keys[0] != "room/42/REDACTED/4567X_page.xml" {
		t.Errorf("archive keys = %v", archive.keys)
	}
	if len(jobs.updates) != 1 {
		t.Fatalf("job updates = %d", len(jobs.updates))
	}
	u := jobs.updates[0]
	if u.JobID != "task-1" || u.DocumentType != "PAN" || u.FieldCount != 4 {
		t.Errorf("job update = %+v", u)
	}
	if _, ok := u.Metadata["archivedReports"]; !ok {
		t.Error("archived keys not recorded")
	}
}

func TestCompleteTaskMissingUploadRecord(t *testing.T) {
	records := &fakeRecords{updateErr: fmt.Errorf("file details: %w", ErrNotFound)}
	sm := newTestManager(&fakeJobs{}, records, nil)

	if err := sm.CompleteTask(context.Background(), &TaskOutcome{TaskID: "t", Status: "REJECTED"}); err != nil {
		t.Fatalf("missing upload record should not fail the task: %v", err)
	}
	if records.calls[len(records.calls)-1] != "delete t" {
		t.Errorf("workspace entry not removed: %v", records.calls)
	}
}

func TestCompleteTaskStopsOnDatabaseError(t *testing.T) {
	records := &fakeRecords{}
	sm := newTestManager(&fakeJobs{err: errors.New("connection refused")}, records, &fakeArchive{fail: true})

	if err := sm.CompleteTask(context.Background(), &TaskOutcome{TaskID: "t", Status: "REDACTED", Reports: []string{"a.xml"}}); err == nil {
		t.Fatal("expected error")
	}
	for _, c := range records.calls {
		if c == "delete t" {
			t.Error("workspace entry removed although the job row was not written")
		}
	}
}

func TestCompleteTaskRequiresID(t *testing.T) {
	sm := newTestManager(&fakeJobs{}, &fakeRecords{}, nil)
	if err := sm.CompleteTask(context.Background(), &TaskOutcome{}); err == nil {
		t.Error("expected error for empty task ID")
	}
}

func TestWebhookTarget(t *testing.T) {
	records := &fakeRecords{
		details: map[string]*FileDetails{"t1": {TaskID: "t1", Status: "REDACTED", ClientID: "c1", UploadDir: "/upload"}},
		hooks:   map[string]*Webhook{"c1": {ClientID: "c1", URL: "http://client.example"}},
	}
	sm := newTestManager(&fakeJobs{}, records, nil)

	target, err := sm.WebhookTarget(context.Background(), "t1")
	if err != nil {
		t.Fatalf("WebhookTarget: %v", err)
	}
	if target.URL != "http://client.example" || target.Details.UploadDir != "/upload" {
		t.Errorf("target = %+v", target)
	}

	records.details["t2"] = &FileDetails{TaskID: "t2", ClientID: "unknown"}
	if _, err := sm.WebhookTarget(context.Background(), "t2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetStats(t *testing.T) {
	sm := newTestManager(&fakeJobs{}, &fakeRecords{}, nil)
	stats, err := sm.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats["workspace"] != int64(3) {
		t.Errorf("stats = %v", stats)
	}
}

func TestReportKey(t *testing.T) {
	if got := ReportKey("room", "42", "REJECTED", "/upload/room/42/Rejected/a.xml"); got != "room/42/REJECTED/a.xml" {
		t.Errorf("ReportKey = %q", got)
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	got := string(sanitizeJSONForPostgres([]byte(`{"a":"x\u0000y","b":"\u0007"}`)))
	want := `{"a":"xy","b":" "}`
	if got != want {
		t.Errorf("sanitize = %s, want %s", got, want)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pg, err := NewPostgresClient(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pg.Close()

	ctx := context.Background()
	if err := pg.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	taskID := "test-" + t.Name()
	if err := pg.UpdateJobStatus(ctx, &JobUpdate{JobID: taskID, Status: "PROCESSING"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := pg.UpdateJobStatus(ctx, &JobUpdate{JobID: taskID, Status: "REDACTED", DocumentType: "PAN", FieldCount: 3, Reports: []string{"a.xml"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	job, err := pg.GetJobByID(ctx, taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != "REDACTED" || job.DocumentType != "PAN" || job.FieldCount != 3 || len(job.Reports) != 1 {
		t.Errorf("job = %+v", job)
	}
}
