package notifications

import (
	"time"

	"linkrelay/internal/checkpoint"
)

// Event identifies a relay milestone.
type Event string

const (
	EventItemStarted        Event = "item_started"
	EventItemSucceeded      Event = "item_succeeded"
	EventItemFailed         Event = "item_failed"
	EventItemSkipped        Event = "item_skipped"
	EventQueueEmpty         Event = "queue_empty"
	EventCheckpointExported Event = "checkpoint_exported"
	EventCaptionExhausted   Event = "caption_exhausted"
	EventTestNotification   Event = "test"
)

// Payload carries event fields keyed by the Key* constants.
type Payload map[string]any

// Payload keys.
const (
	KeyLink       = "link"
	KeyIndex      = "index"
	KeyTotal      = "total"
	KeyRemaining  = "remaining"
	KeySizeBytes  = "size_bytes"
	KeyCeiling    = "ceiling_bytes"
	KeyLabel      = "label"
	KeyCaption    = "caption"
	KeyReason     = "reason"
	KeyError      = "error"
	KeyDelivered  = "delivered"
	KeyFailed     = "failed"
	KeySkipped    = "skipped"
	KeyElapsed    = "elapsed"
	KeyCheckpoint = "checkpoint"
	KeyPath       = "path"
)

func (p Payload) str(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func (p Payload) integer(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

// Checkpoint returns the checkpoint attached to a checkpoint_exported payload.
func (p Payload) Checkpoint() (checkpoint.Checkpoint, bool) {
	cp, ok := p[KeyCheckpoint].(checkpoint.Checkpoint)
	return cp, ok
}
