package reload

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"confd/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier(t *testing.T) {
	var received atomic.Int32
	var body []byte
	var signature string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get("X-Confd-Signature")
		assert.Equal(t, "config.reload", r.Header.Get("X-Confd-Event"))
		assert.Equal(t, "token", r.Header.Get("X-Custom-Auth"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(&WebhookConfig{
		URL:     srv.URL,
		Secret:  "hunter2",
		Headers: map[string]string{"X-Custom-Auth": "token"},
	})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background()))
	assert.EqualValues(t, 1, received.Load())

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "config.reload", payload.EventType)
	assert.NotEmpty(t, payload.DeliveryID)

	mac := hmac.New(sha256.New, []byte("hunter2"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestWebhookNotifierRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(&WebhookConfig{
		URL: srv.URL,
		Retry: retry.Config{
			Enable:   true,
			Attempts: 3,
			Interval: time.Millisecond,
		},
	})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background()))
	assert.EqualValues(t, 3, calls.Load())
}

func TestWebhookNotifierRequiresURL(t *testing.T) {
	_, err := NewWebhookNotifier(&WebhookConfig{})
	assert.Error(t, err)
}
