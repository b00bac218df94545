package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	deliverTimeout = 10 * time.Second
	maxAttempts    = 3
	retryDelay     = 2 * time.Second
	queueCap       = 256
)

// WebhookManager posts alert events to the configured receiver URLs.
// Delivery is asynchronous: Broadcast enqueues and returns immediately, so
// a slow receiver never blocks the alert path. The queue drops on overflow.
type WebhookManager struct {
	urls       []string
	client     *http.Client
	queue      chan []byte
	retryDelay time.Duration
	log        *zap.Logger
}

// NewWebhookManager creates a webhook manager for the given receiver URLs.
// With no URLs configured every call is a no-op.
func NewWebhookManager(urls []string, log *zap.Logger) *WebhookManager {
	return &WebhookManager{
		urls:       urls,
		client:     &http.Client{Timeout: deliverTimeout},
		queue:      make(chan []byte, queueCap),
		retryDelay: retryDelay,
		log:        log,
	}
}

// Enabled reports whether any receiver is configured.
func (wm *WebhookManager) Enabled() bool {
	return len(wm.urls) > 0
}

// Broadcast implements the publisher surface the alert engine fans out to.
// The payload is wrapped in the same envelope the SSE feed uses.
func (wm *WebhookManager) Broadcast(event string, payload interface{}) {
	if !wm.Enabled() {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		wm.log.Warn("webhook payload marshal failed", zap.Error(err))
		return
	}
	select {
	case wm.queue <- body:
	default:
		wm.log.Warn("webhook queue full, event dropped", zap.String("event", event))
	}
}

// Run delivers queued events until ctx is cancelled.
func (wm *WebhookManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-wm.queue:
			for _, url := range wm.urls {
				wm.deliver(ctx, url, body)
			}
		}
	}
}

// deliver posts one payload with bounded retries. Failures are logged and
// the payload is abandoned after the last attempt.
func (wm *WebhookManager) deliver(ctx context.Context, url string, body []byte) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			wm.log.Warn("webhook request build failed", zap.String("url", url), zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := wm.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return
			}
			lastErr = &statusError{code: resp.StatusCode}
		} else {
			lastErr = err
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wm.retryDelay):
			}
		}
	}
	wm.log.Warn("webhook delivery failed",
		zap.String("url", url),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.code)
}
