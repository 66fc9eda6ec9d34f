package telegram

import (
	"bytes"
	"context"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"linkrelay/internal/commands"
	"linkrelay/internal/logging"
)

// Handler interprets operator input.
type Handler interface {
	HandleText(ctx context.Context, text string) (commands.Reply, error)
	HandleDocument(ctx context.Context, name, mimeType string, r io.Reader) (commands.Reply, error)
}

// Bot long-polls updates and routes admin messages to a Handler.
type Bot struct {
	client  *Client
	handler Handler
}

// NewBot pairs a client with the handler that answers operator messages.
func NewBot(client *Client, handler Handler) *Bot {
	return &Bot{client: client, handler: handler}
}

// Run processes updates until ctx is cancelled. Updates are handled one at a
// time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.client.pollTimeout
	updates := b.client.api.GetUpdatesChan(cfg)
	defer b.client.api.StopReceivingUpdates()

	b.client.logger.Info(
		"telegram polling started",
		logging.String(logging.FieldEventType, "telegram_polling_start"),
		logging.Int64("admin_user_id", b.client.adminID),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	logger := b.client.logger
	if msg.From == nil || msg.From.ID != b.client.adminID {
		var from int64
		if msg.From != nil {
			from = msg.From.ID
		}
		logger.Debug("ignoring message from non-admin user", logging.Int64("user_id", from))
		return
	}

	var (
		reply commands.Reply
		err   error
	)
	switch {
	case msg.Document != nil:
		reply, err = b.handleDocument(ctx, msg.Document)
	case msg.Text != "":
		reply, err = b.handler.HandleText(ctx, msg.Text)
	default:
		return
	}
	if err != nil {
		logger.Info("operator input rejected", logging.Error(err))
	}
	if sendErr := b.client.SendReply(ctx, msg.Chat.ID, msg.MessageID, reply); sendErr != nil {
		logging.WarnWithContext(logger, "operator reply failed", "telegram_reply_failed",
			logging.Error(sendErr),
			logging.String(logging.FieldErrorHint, "check bot permissions in the operator chat"),
			logging.String(logging.FieldImpact, "operator did not see the command result"),
		)
	}
}

func (b *Bot) handleDocument(ctx context.Context, doc *tgbotapi.Document) (commands.Reply, error) {
	body, err := b.client.download(ctx, doc.FileID)
	if err != nil {
		logging.WarnWithContext(b.client.logger, "link file download failed", "telegram_download_failed",
			logging.String("file_name", doc.FileName),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resend the file or check network access"),
			logging.String(logging.FieldImpact, "links from the file were not queued"),
		)
		return commands.Reply{Text: "❌ Error processing text file: " + err.Error()}, err
	}
	return b.handler.HandleDocument(ctx, doc.FileName, doc.MimeType, bytes.NewReader(body))
}
