package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/drivehit/gallery-sync/internal/port"
)

// HTTPSender delivers webhook payloads over HTTP POST
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

var _ port.WebhookSender = (*HTTPSender)(nil)

// NewHTTPSender creates a sender posting to the given endpoint
func NewHTTPSender(endpoint string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send posts one signed payload. Any non-2xx response is a failed delivery.
func (s *HTTPSender) Send(ctx context.Context, body []byte, signature string, timestamp int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", strconv.FormatInt(timestamp, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// NopSender discards every payload. Used when no webhook endpoint is
// configured, so change notifications drain without retries or dead letters.
type NopSender struct{}

var _ port.WebhookSender = NopSender{}

// Send reports success without delivering anything
func (NopSender) Send(ctx context.Context, body []byte, signature string, timestamp int64) error {
	return nil
}
