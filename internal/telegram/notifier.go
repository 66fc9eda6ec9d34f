package telegram

import (
	"context"

	"linkrelay/internal/notifications"
)

// Notifier publishes relay events to the operator chat.
type Notifier struct {
	client *Client
}

// NewNotifier returns a notifications.Service backed by the operator chat.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// Publish renders the event as a chat message. Checkpoint events carry the
// remaining links as an attached document.
func (n *Notifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	switch event {
	case notifications.EventItemStarted:
		if !n.client.itemStarted {
			return nil
		}
	case notifications.EventCheckpointExported:
		if cp, ok := payload.Checkpoint(); ok {
			return n.client.SendCheckpoint(ctx, cp)
		}
	}
	msg := notifications.Render(event, payload)
	return n.client.SendText(ctx, msg.Body)
}
