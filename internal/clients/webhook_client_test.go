package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotifyStatus(t *testing.T) {
	var got ProcessStatus
	var path, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWebhookClient(5 * time.Second)
	status := &ProcessStatus{
		TaskID:     "task-1",
		Status:     "REDACTED",
		TaskResult: "Successfully Redacted PAN Card Document",
		ClientID:   "client-1",
		UploadDir:  "/upload/room/42",
	}
	if err := c.NotifyStatus(context.Background(), srv.URL+"/", status); err != nil {
		t.Fatalf("NotifyStatus: %v", err)
	}

	if path != ProcessStatusPath {
		t.Errorf("path = %q, want %q", path, ProcessStatusPath)
	}
	if contentType != "application/json" {
		t.Errorf("content type = %q", contentType)
	}
	if got != *status {
		t.Errorf("payload = %+v", got)
	}
}

func TestNotifyStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWebhookClient(0)
	if err := c.NotifyStatus(context.Background(), srv.URL, &ProcessStatus{TaskID: "t"}); err == nil {
		t.Error("expected error on 500")
	}
	if err := c.NotifyStatus(context.Background(), "", &ProcessStatus{TaskID: "t"}); err == nil {
		t.Error("expected error for empty URL")
	}
	if err := c.NotifyStatus(context.Background(), srv.URL, &ProcessStatus{}); err == nil {
		t.Error("expected error for empty task ID")
	}
}
