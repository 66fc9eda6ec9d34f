package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"linkrelay/internal/services"
)

// Message is a rendered notification.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Render formats an event for operators.
func Render(event Event, payload Payload) Message {
	if payload == nil {
		payload = Payload{}
	}
	link := strings.TrimSpace(payload.str(KeyLink))
	switch event {
	case EventItemStarted:
		body := "▶️ Processing"
		if total := payload.integer(KeyTotal); total > 0 {
			body = fmt.Sprintf("▶️ Processing %d/%d", payload.integer(KeyIndex), total)
		}
		return Message{
			Title: "linkrelay - Processing",
			Body:  body + "\n" + link,
			Tags:  []string{"linkrelay", "item", "started"},
		}
	case EventItemSucceeded:
		body := "✅ Delivered: " + link
		if size := payload.integer(KeySizeBytes); size > 0 {
			body += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(size)))
		}
		if caption := payload.str(KeyCaption); caption != "" {
			body += fmt.Sprintf("\nCaption: %s", caption)
		}
		body += fmt.Sprintf("\nRemaining: %d", payload.integer(KeyRemaining))
		return Message{
			Title: "linkrelay - Delivered",
			Body:  body,
			Tags:  []string{"linkrelay", "item", "delivered"},
		}
	case EventItemFailed:
		return Message{
			Title: "linkrelay - Failed",
			Body:  fmt.Sprintf("❌ %s: %s", failureText(payload), link),
			Tags:  []string{"linkrelay", "item", "failed"},
		}
	case EventItemSkipped:
		return Message{
			Title: "linkrelay - Skipped",
			Body:  "⏭️ Skipped: " + link,
			Tags:  []string{"linkrelay", "item", "skipped"},
		}
	case EventQueueEmpty:
		return renderQueueEmpty(payload)
	case EventCheckpointExported:
		body := "📦 Checkpoint exported"
		if cp, ok := payload.Checkpoint(); ok {
			body = "📦 " + cp.Caption()
		}
		if path := payload.str(KeyPath); path != "" {
			body += "\nSaved: " + path
		}
		return Message{
			Title: "linkrelay - Checkpoint",
			Body:  body,
			Tags:  []string{"linkrelay", "checkpoint"},
		}
	case EventCaptionExhausted:
		return Message{
			Title: "linkrelay - Caption Finished",
			Body:  fmt.Sprintf("🏷️ Caption %q has been applied to every requested video", payload.str(KeyCaption)),
			Tags:  []string{"linkrelay", "caption"},
		}
	case EventTestNotification:
		return Message{
			Title:    "linkrelay - Test",
			Body:     "🧪 Notification system test",
			Tags:     []string{"linkrelay", "test"},
			Priority: "low",
		}
	default:
		return Message{
			Title: "linkrelay",
			Body:  string(event),
			Tags:  []string{"linkrelay"},
		}
	}
}

func failureText(payload Payload) string {
	switch payload.str(KeyReason) {
	case services.ReasonTooLarge:
		size := payload.integer(KeySizeBytes)
		ceiling := payload.integer(KeyCeiling)
		switch {
		case size > 0 && ceiling > 0:
			return fmt.Sprintf("Too large (%s, limit %s)", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(ceiling)))
		case size > 0:
			return fmt.Sprintf("Too large (%s)", humanize.IBytes(uint64(size)))
		default:
			return "Too large"
		}
	case services.ReasonResolutionFailed:
		return "Could not resolve"
	default:
		if detail := strings.TrimSpace(payload.str(KeyError)); detail != "" {
			return "Transfer failed (" + detail + ")"
		}
		return "Transfer failed"
	}
}

func renderQueueEmpty(payload Payload) Message {
	delivered := payload.integer(KeyDelivered)
	failed := payload.integer(KeyFailed)
	skipped := payload.integer(KeySkipped)
	elapsed := payload.duration(KeyElapsed).Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedText := elapsed.String()

	title := "linkrelay - Batch Complete"
	if failed > 0 {
		title = "linkrelay - Batch Complete (with errors)"
	}
	body := fmt.Sprintf("🏁 Queue empty: %d delivered, %d failed", delivered, failed)
	if skipped > 0 {
		body += fmt.Sprintf(", %d skipped", skipped)
	}
	body += " in " + elapsedText
	return Message{
		Title: title,
		Body:  body,
		Tags:  []string{"linkrelay", "queue", "completed"},
	}
}
