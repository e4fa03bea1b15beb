package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/agencybot/internal/logging"
)

func TestWebhookDeliversEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, logging.New("error"))
	err := w.Notify(context.Background(), "submission.completed", map[string]any{"job_id": "j1"})
	require.NoError(t, err)

	assert.Equal(t, "submission.completed", got["event"])
	payload, ok := got["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "j1", payload["job_id"])
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, logging.New("error"))
	err := w.Notify(context.Background(), "submission.completed", nil)
	assert.Error(t, err)
}

func TestWebhookUnconfiguredIsNoop(t *testing.T) {
	w := NewWebhook("", logging.New("error"))
	assert.NoError(t, w.Notify(context.Background(), "submission.completed", nil))
}
