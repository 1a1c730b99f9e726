/**
 * Webhook Client for the OCRR Worker
 *
 * Posts a task's final status to the webhook its client registered with the
 * upload service: POST <url>/CVCore/processstatus with a JSON body.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
)

// ProcessStatusPath is appended to the client's registered URL
const ProcessStatusPath = "/CVCore/processstatus"

// ProcessStatus is the webhook payload
type ProcessStatus struct {
	TaskID     string `json:"taskId"`
	Status     string `json:"status"`
	TaskResult string `json:"taskResult"`
	ClientID   string `json:"clientId"`
	UploadDir  string `json:"uploadDir"`
}

// WebhookClient delivers task status notifications
type WebhookClient struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWebhookClient creates a new webhook client
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookClient{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewLogger("webhook"),
	}
}

// NotifyStatus posts status to baseURL. Any non-2xx response is an error.
func (c *WebhookClient) NotifyStatus(ctx context.Context, baseURL string, status *ProcessStatus) error {
	if baseURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if status == nil || status.TaskID == "" {
		return fmt.Errorf("task ID is required")
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + ProcessStatusPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("Posting task status", "taskId", status.TaskID, "status", status.Status, "url", url)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
