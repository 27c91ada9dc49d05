package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flowsync/internal/api"
	"flowsync/pkg/logging"
)

const deliveryTimeout = 5 * time.Second

// Notifier delivers normalized events to the sync server. Delivery is fire
// and forget: the outcome is only logged, never surfaced to the platform
// operation being observed.
type Notifier struct {
	serverURL string
	secret    string
	client    *http.Client
	logger    *logging.Logger
}

// NewNotifier creates a Notifier pointing at the sync server base URL.
func NewNotifier(serverURL, secret string, logger *logging.Logger) *Notifier {
	return &Notifier{
		serverURL: strings.TrimRight(serverURL, "/"),
		secret:    secret,
		client:    &http.Client{Timeout: deliveryTimeout},
		logger:    logger,
	}
}

// Send posts a payload to a webhook path asynchronously. The caller's
// critical path never waits on the result.
func (n *Notifier) Send(path string, payload any) {
	go func() {
		if err := n.deliver(path, payload); err != nil {
			n.logger.Error("event delivery to %s failed: %v", path, err)
		}
	}()
}

// SendSync posts a payload and waits, for callers that want the outcome
// (tests, shutdown flushing).
func (n *Notifier) SendSync(path string, payload any) error {
	return n.deliver(path, payload)
}

func (n *Notifier) deliver(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(api.SecretHeader, n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync server returned status %d", resp.StatusCode)
	}
	n.logger.Debug("delivered %s: status %d", path, resp.StatusCode)
	return nil
}
