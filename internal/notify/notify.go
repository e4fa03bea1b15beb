package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/agencybot/internal/logging"
)

// Webhook delivers job events to an external CRM endpoint. Delivery is fire
// and forget: callers log failures and move on, the job pipeline never blocks
// on it.
type Webhook struct {
	url    string
	client *http.Client
	log    *logging.Logger
}

func NewWebhook(url string, log *logging.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With("module", "notify"),
	}
}

func (w *Webhook) Notify(ctx context.Context, event string, payload map[string]any) error {
	if w.url == "" {
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"event":     event,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	w.log.Debug("webhook delivered", "event", event)
	return nil
}
