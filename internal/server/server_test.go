package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adverant/nexus/ocrr-worker/internal/storage"
)

type fakeStores struct {
	ping     map[string]error
	stats    map[string]interface{}
	statsErr error
	jobs     map[string]*storage.Job
}

func (f *fakeStores) Ping(context.Context) map[string]error { return f.ping }

func (f *fakeStores) GetStats(context.Context) (map[string]interface{}, error) {
	return f.stats, f.statsErr
}

func (f *fakeStores) GetJobByID(_ context.Context, id string) (*storage.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("job %s: %w", id, storage.ErrNotFound)
}

type fakeQueue map[string]int64

func (f fakeQueue) GetStats(context.Context) (map[string]int64, error) { return f, nil }

func get(t *testing.T, s *Server, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		ping   map[string]error
		code   int
		status string
	}{
		{"all up", map[string]error{"postgres": nil, "mongo": nil}, http.StatusOK, "healthy"},
		{"mongo down", map[string]error{"postgres": nil, "mongo": errors.New("no reachable servers")}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&Config{Stores: &fakeStores{ping: tt.ping}, Info: map[string]string{"mode": "permissive"}})
			code, body := get(t, s, "/health")
			if code != tt.code || body["status"] != tt.status || body["mode"] != "permissive" {
				t.Errorf("code = %d, body = %v", code, body)
			}
			checks := body["checks"].(map[string]interface{})
			if checks["postgres"] != "ok" {
				t.Errorf("checks = %v", checks)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := New(&Config{
		Stores: &fakeStores{stats: map[string]interface{}{"workspace": 3}},
		Queue:  fakeQueue{"waiting": 5, "failed": 1},
	})

	code, body := get(t, s, "/stats")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	queue := body["queue"].(map[string]interface{})
	if queue["waiting"] != float64(5) {
		t.Errorf("queue = %v", queue)
	}
	if body["storage"].(map[string]interface{})["workspace"] != float64(3) {
		t.Errorf("storage = %v", body["storage"])
	}

	s = New(&Config{Stores: &fakeStores{statsErr: errors.New("pq: timeout")}})
	if code, _ := get(t, s, "/stats"); code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", code)
	}
}

func TestJob(t *testing.T) {
	s := New(&Config{Stores: &fakeStores{jobs: map[string]*storage.Job{
		"t1": {TaskID: "t1", Status: "REDACTED", DocumentType: "PAN"},
	}}})

	code, body := get(t, s, "/jobs/t1")
	if code != http.StatusOK || body["status"] != "REDACTED" || body["documentType"] != "PAN" {
		t.Errorf("code = %d, body = %v", code, body)
	}

	if code, _ := get(t, s, "/jobs/missing"); code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", code)
	}
}
