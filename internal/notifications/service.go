package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linkrelay/internal/config"
)

const userAgent = "linkrelay/0.1.0"

// Service defines the notification surface exposed to relay components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, event Event, payload Payload) error

// Publish calls f.
func (f ServiceFunc) Publish(ctx context.Context, event Event, payload Payload) error {
	return f(ctx, event, payload)
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// ntfy is a push channel; per-item chatter stays in the operator chat.
var ntfySuppressed = map[Event]struct{}{
	EventItemStarted:      {},
	EventItemSkipped:      {},
	EventCaptionExhausted: {},
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if _, skip := ntfySuppressed[event]; skip {
		return nil
	}
	msg := Render(event, payload)
	if event == EventItemFailed {
		msg.Priority = "high"
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) send(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Multi fans an event out to every service. A failing service does not stop
// the others; errors are joined.
type Multi []Service

// Publish implements Service.
func (m Multi) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if svc == nil {
			continue
		}
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
