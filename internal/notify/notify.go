// Package notify posts lifecycle announcements to a Discord-style
// webhook. Delivery is best-effort: a failed post is logged and never
// propagates into supervisor control flow.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier announces a lifecycle event.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Notify(context.Context, string) {}

// Webhook posts {"content": message} JSON to a fixed URL.
type Webhook struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

func NewWebhook(url string, log *slog.Logger) *Webhook {
	return &Webhook{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// ForConfig returns a Webhook when url is set, otherwise Noop.
func ForConfig(url string, log *slog.Logger) Notifier {
	if url == "" {
		return Noop{}
	}
	return NewWebhook(url, log)
}

func (w *Webhook) Notify(ctx context.Context, message string) {
	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		w.log.Warn("encode webhook payload", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Warn("build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		w.log.Warn("webhook delivery failed", "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		w.log.Warn("webhook delivery rejected", "status", fmt.Sprintf("%d", resp.StatusCode))
	}
}
