package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/linksource"
	"linkrelay/internal/logging"
	"linkrelay/internal/services"
	"linkrelay/internal/workflow"
)

// Controller is the directive surface the interpreter drives.
type Controller interface {
	Enqueue(ctx context.Context, links []string) (int, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Skip(ctx context.Context, n int) error
	CaptionNext(ctx context.Context, n int, text string) error
	ClearAll(ctx context.Context) (int, error)
	Remaining(ctx context.Context) (checkpoint.Checkpoint, error)
	Status(ctx context.Context) (workflow.StatusSummary, error)
}

// Expander rewrites incoming links before they are queued.
type Expander interface {
	Expand(ctx context.Context, links []string) []string
}

// Reply is the answer sent back to the operator.
type Reply struct {
	Text       string
	Checkpoint *checkpoint.Checkpoint
}

// Interpreter turns operator messages into controller directives.
type Interpreter struct {
	ctrl     Controller
	expander Expander
	logger   *slog.Logger
}

// NewInterpreter wires an interpreter to a controller. expander may be nil.
func NewInterpreter(ctrl Controller, expander Expander, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Interpreter{
		ctrl:     ctrl,
		expander: expander,
		logger:   logging.NewComponentLogger(logger, "commands"),
	}
}

// HandleText interprets a chat message: a slash command or a single link.
// The returned error is for logging; Reply always carries operator text.
func (i *Interpreter) HandleText(ctx context.Context, text string) (Reply, error) {
	if IsCommand(text) {
		cmd, err := Parse(text)
		if err != nil {
			return errorReply(err), err
		}
		return i.Execute(ctx, cmd)
	}
	links, err := linksource.FromMessage(text)
	if err != nil {
		return Reply{Text: "⚠️ Send a video link (http:// or https://) or a .txt file with one link per line."}, err
	}
	return i.enqueue(ctx, links)
}

// HandleDocument interprets an uploaded batch file of newline-separated links.
func (i *Interpreter) HandleDocument(ctx context.Context, name, mimeType string, r io.Reader) (Reply, error) {
	if !isTextFile(name, mimeType) {
		err := services.Wrap(services.ErrInvalidInput, "commands", "document", fmt.Sprintf("unsupported file type %q", mimeType), nil)
		return Reply{Text: "⚠️ Only plain text (.txt) files with one link per line are accepted."}, err
	}
	links, err := linksource.FromBatch(r)
	if err != nil {
		return Reply{Text: "❌ Error processing text file: " + err.Error()}, err
	}
	return i.enqueue(ctx, links)
}

// Execute runs a parsed command.
func (i *Interpreter) Execute(ctx context.Context, cmd Command) (Reply, error) {
	i.logger.Debug("command received", logging.String("command", string(cmd.Kind)), logging.Int("count", cmd.Count))
	switch cmd.Kind {
	case KindStart:
		return Reply{Text: welcomeText}, nil
	case KindHelp:
		return Reply{Text: helpText}, nil
	case KindStatus:
		status, err := i.ctrl.Status(ctx)
		if err != nil {
			return errorReply(err), err
		}
		return Reply{Text: RenderStatus(status)}, nil
	case KindRemain:
		return i.remaining(ctx)
	case KindPause:
		return i.pause(ctx)
	case KindResume:
		return i.resume(ctx)
	case KindClear:
		removed, err := i.ctrl.ClearAll(ctx)
		if err != nil {
			return errorReply(err), err
		}
		if removed == 0 {
			return Reply{Text: "Queue is already empty. Pending skips and captions were reset."}, nil
		}
		return Reply{Text: fmt.Sprintf("🧹 Cleared %d links from queue.", removed)}, nil
	case KindSkip:
		if err := i.ctrl.Skip(ctx, cmd.Count); err != nil {
			return errorReply(err), err
		}
		return Reply{Text: fmt.Sprintf("⏭️ The next %d queued %s will be skipped.", cmd.Count, plural(cmd.Count, "link", "links"))}, nil
	case KindCaption:
		if err := i.ctrl.CaptionNext(ctx, cmd.Count, cmd.Text); err != nil {
			return errorReply(err), err
		}
		return Reply{Text: fmt.Sprintf(
			"📝 Caption set for next %d %s:\n%q\n\nAfter %d %s, captions will be automatically disabled.",
			cmd.Count, plural(cmd.Count, "video", "videos"), cmd.Text, cmd.Count, plural(cmd.Count, "video", "videos"),
		)}, nil
	default:
		err := usageError("Unknown command. Send /help for the list.")
		return errorReply(err), err
	}
}

func (i *Interpreter) enqueue(ctx context.Context, links []string) (Reply, error) {
	if i.expander != nil {
		links = i.expander.Expand(ctx, links)
	}
	added, err := i.ctrl.Enqueue(ctx, links)
	if err != nil {
		return errorReply(err), err
	}
	i.logger.Info(
		"links received",
		logging.String(logging.FieldEventType, "links_received"),
		logging.Int("added", added),
		logging.String("summary", linksource.Summary(links)),
	)
	status, err := i.ctrl.Status(ctx)
	if err != nil {
		return Reply{Text: fmt.Sprintf("➕ %d %s added.", added, plural(added, "link", "links"))}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "➕ %d %s added successfully!\n📊 Total in queue: %d", added, plural(added, "link", "links"), status.QueueLength)
	if status.InFlight != nil {
		fmt.Fprintf(&b, "\n⏳ Currently processing: %d/%d", status.InFlight.Index, status.InFlight.Total)
	}
	if !status.RunFlag {
		b.WriteString("\n⏸️ Processing is paused. Use /startnow to resume.")
	}
	return Reply{Text: b.String()}, nil
}

func (i *Interpreter) remaining(ctx context.Context) (Reply, error) {
	cp, err := i.ctrl.Remaining(ctx)
	if err != nil {
		return errorReply(err), err
	}
	if cp.Remaining() == 0 {
		return Reply{Text: "No remaining links to process."}, nil
	}
	return Reply{Text: cp.Caption(), Checkpoint: &cp}, nil
}

func (i *Interpreter) pause(ctx context.Context) (Reply, error) {
	status, err := i.ctrl.Status(ctx)
	if err != nil {
		return errorReply(err), err
	}
	if !status.RunFlag {
		return Reply{Text: "Processing is already paused."}, nil
	}
	if err := i.ctrl.Pause(ctx); err != nil {
		return errorReply(err), err
	}
	text := "⏸️ Processing paused. Use /startnow to resume."
	if status.InFlight != nil {
		text = "⏸️ Processing paused after the current video. Use /startnow to resume."
	}
	return Reply{Text: text}, nil
}

func (i *Interpreter) resume(ctx context.Context) (Reply, error) {
	status, err := i.ctrl.Status(ctx)
	if err != nil {
		return errorReply(err), err
	}
	if status.RunFlag {
		return Reply{Text: "Processing is not paused."}, nil
	}
	if err := i.ctrl.Resume(ctx); err != nil {
		return errorReply(err), err
	}
	if status.QueueLength == 0 && status.InFlight == nil {
		return Reply{Text: "▶️ Processing resumed. The queue is empty; send links to start."}, nil
	}
	return Reply{Text: "▶️ Processing resumed!"}, nil
}

// RenderStatus formats a controller status for chat.
func RenderStatus(status workflow.StatusSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Status: %s", cases.Title(language.Und).String(string(status.State)))
	if !status.RunFlag && status.State == workflow.StateIdle {
		b.WriteString(" (paused)")
	}
	fmt.Fprintf(&b, "\nQueue: %d pending", status.QueueLength)
	if in := status.InFlight; in != nil {
		fmt.Fprintf(&b, "\nProcessing %d/%d: %s", in.Index, in.Total, in.Link)
	}
	if status.PendingSkips > 0 {
		fmt.Fprintf(&b, "\nPending skips: %d", status.PendingSkips)
	}
	if status.CaptionsLeft > 0 {
		fmt.Fprintf(&b, "\nCaption %q for next %d %s", status.StagedCaption, status.CaptionsLeft, plural(status.CaptionsLeft, "video", "videos"))
	}
	if run := status.Run; run != nil {
		fmt.Fprintf(&b, "\nThis batch: %d delivered, %d failed, %d skipped (started %s)",
			run.Delivered, run.Failed, run.Skipped, humanize.Time(run.StartedAt))
	}
	fmt.Fprintf(&b, "\nNext checkpoint in %d", status.CheckpointEvery-status.CompletedSinceCheckpoint)
	if status.CeilingBytes > 0 {
		fmt.Fprintf(&b, "\nSize limit: %s", humanize.IBytes(uint64(status.CeilingBytes)))
	}
	if status.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", status.LastError)
	}
	return b.String()
}

func errorReply(err error) Reply {
	var usage *UsageError
	switch {
	case errors.As(err, &usage):
		return Reply{Text: "⚠️ " + usage.Usage}
	case errors.Is(err, services.ErrInvalidInput):
		return Reply{Text: "⚠️ " + err.Error()}
	case errors.Is(err, workflow.ErrStopped):
		return Reply{Text: "❌ The relay is shutting down; try again after it restarts."}
	default:
		return Reply{Text: "❌ " + err.Error()}
	}
}

func isTextFile(name, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if base, _, ok := strings.Cut(mimeType, ";"); ok {
		mimeType = strings.TrimSpace(base)
	}
	if mimeType == "text/plain" {
		return true
	}
	return mimeType == "" && strings.EqualFold(filepath.Ext(name), ".txt")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
