package queue

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestTaskPayloadFileBuffer(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"base64", `{"taskId":"t","fileBuffer":"aGVsbG8="}`, "hello", false},
		{"node buffer", `{"taskId":"t","fileBuffer":{"type":"Buffer","data":[104,105]}}`, "hi", false},
		{"absent", `{"taskId":"t"}`, "", false},
		{"bad base64", `{"taskId":"t","fileBuffer":"%%%"}`, "", true},
		{"wrong object", `{"taskId":"t","fileBuffer":{"type":"Blob"}}`, "", true},
		{"number", `{"taskId":"t","fileBuffer":12}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p TaskPayload
			err := json.Unmarshal([]byte(tt.body), &p)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if p.TaskID != "t" || string(p.FileBuffer) != tt.want {
				t.Errorf("payload = %+v", p)
			}
		})
	}
}

func TestTaskPayloadMarshalKeepsBuffer(t *testing.T) {
	in := TaskPayload{TaskID: "t", DocumentName: "a.jpg", FileBuffer: []byte{0xFF, 0xD8}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out TaskPayload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.DocumentName != "a.jpg" || len(out.FileBuffer) != 2 || out.FileBuffer[1] != 0xD8 {
		t.Errorf("round trip = %+v", out)
	}
}

func TestNormalize(t *testing.T) {
	p := TaskPayload{DocumentPath: filepath.Join("/upload", "room", "42", "4567X_page.jpg")}
	p.normalize()

	if p.TaskID == "" {
		t.Error("task ID not generated")
	}
	if p.DocumentName != "4567X_page.jpg" || p.Room != "room" || p.RoomID != "42" {
		t.Errorf("payload = %+v", p)
	}
	if got := p.WorkspaceName(); got != "room+42+4567X_page.jpg" {
		t.Errorf("WorkspaceName = %q", got)
	}

	explicit := TaskPayload{TaskID: "keep", DocumentName: "room+42+a.jpg", Room: "room", RoomID: "42"}
	explicit.normalize()
	if explicit.TaskID != "keep" || explicit.WorkspaceName() != "room+42+a.jpg" {
		t.Errorf("payload = %+v", explicit)
	}
}

func TestRequest(t *testing.T) {
	p := TaskPayload{TaskID: "t", DocumentName: "a.jpg", Room: "r", RoomID: "1", RedactedPath: "/out/Redacted"}
	req := p.request("/ws/r+1+a.jpg")

	if req.JobID != "t" || req.Filename != "a.jpg" || req.FilePath != "/ws/r+1+a.jpg" || req.RedactedDir != "/out/Redacted" || req.Room != "r" {
		t.Errorf("request = %+v", req)
	}
}
