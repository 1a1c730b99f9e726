/**
 * Redaction task payloads
 *
 * The upload service enqueues one task per scanned page. The page lives at
 * <upload>/<room>/<roomID>/<documentName>; room and roomID are taken from the
 * path when the payload leaves them out.
 */

package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/adverant/nexus/ocrr-worker/internal/processor"
)

// TaskPayload is one redaction request
type TaskPayload struct {
	TaskID       string                 `json:"taskId"`
	DocumentName string                 `json:"documentName,omitempty"`
	DocumentPath string                 `json:"documentPath,omitempty"`
	Room         string                 `json:"room,omitempty"`
	RoomID       string                 `json:"roomID,omitempty"`
	RedactedPath string                 `json:"redactedPath,omitempty"`
	MimeType     string                 `json:"mimeType,omitempty"`
	FileSize     int64                  `json:"fileSize,omitempty"`
	FileURL      string                 `json:"fileUrl,omitempty"`
	FileBuffer   []byte                 `json:"-"` // set by UnmarshalJSON
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts fileBuffer as a base64 string or a Node.js Buffer object
func (p *TaskPayload) UnmarshalJSON(data []byte) error {
	type Alias TaskPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal TaskPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// MarshalJSON writes fileBuffer as base64
func (p TaskPayload) MarshalJSON() ([]byte, error) {
	type Alias TaskPayload
	return json.Marshal(&struct {
		FileBuffer string `json:"fileBuffer,omitempty"`
		Alias
	}{
		FileBuffer: base64.StdEncoding.EncodeToString(p.FileBuffer),
		Alias:      Alias(p),
	})
}

// normalize fills the task ID, document name, room and roomID from what the payload carries
func (p *TaskPayload) normalize() {
	if p.TaskID == "" {
		p.TaskID = uuid.New().String()
	}
	if p.DocumentName == "" && p.DocumentPath != "" {
		p.DocumentName = filepath.Base(p.DocumentPath)
	}
	if (p.Room == "" || p.RoomID == "") && p.DocumentPath != "" {
		roomDir := filepath.Dir(p.DocumentPath)
		if p.RoomID == "" {
			p.RoomID = filepath.Base(roomDir)
		}
		if p.Room == "" {
			p.Room = filepath.Base(filepath.Dir(roomDir))
		}
	}
}

// WorkspaceName is the document name prefixed with "<room>+<roomID>+"
func (p *TaskPayload) WorkspaceName() string {
	prefix := p.Room + "+" + p.RoomID + "+"
	if strings.HasPrefix(p.DocumentName, prefix) {
		return p.DocumentName
	}
	return prefix + p.DocumentName
}

// request builds the processor request; filePath is the workspace copy, if any
func (p *TaskPayload) request(filePath string) *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:       p.TaskID,
		Filename:    p.DocumentName,
		MimeType:    p.MimeType,
		FileSize:    p.FileSize,
		FileBuffer:  p.FileBuffer,
		FilePath:    filePath,
		FileURL:     p.FileURL,
		Room:        p.Room,
		RoomID:      p.RoomID,
		RedactedDir: p.RedactedPath,
		Metadata:    p.Metadata,
	}
}
