package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPUploader POSTs records as JSON.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
}

// NewHTTPUploader creates an uploader for endpoint (DefaultEndpoint when empty).
func NewHTTPUploader(endpoint string, timeout time.Duration) *HTTPUploader {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPUploader{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// backendReply is the optional envelope some backends wrap responses in.
type backendReply struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

// Upload sends rec. Any 2xx status is success unless the body carries a
// "code" field other than 200.
func (u *HTTPUploader) Upload(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", u.endpoint, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Error closing upload response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(data))
	}
	var reply backendReply
	if json.Unmarshal(data, &reply) == nil && reply.Code != nil && *reply.Code != http.StatusOK {
		return fmt.Errorf("%w: code %d: %s", ErrRejected, *reply.Code, reply.Message)
	}
	slog.Debug("Record uploaded", "endpoint", u.endpoint, "status", resp.StatusCode, "device_id", rec.DeviceID)
	return nil
}
