package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/commands"
	"linkrelay/internal/config"
	"linkrelay/internal/logging"
	"linkrelay/internal/services"
)

// API is the subset of the Bot API client the relay uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// HTTPDoer downloads uploaded batch files.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxBatchFileBytes bounds uploaded link files.
const maxBatchFileBytes = 4 << 20

// Client wraps the Bot API for the relay: operator replies, notifications,
// checkpoint documents, and video uploads to the target chat.
type Client struct {
	api          API
	http         HTTPDoer
	adminID      int64
	targetChatID int64
	pollTimeout  int
	itemStarted  bool
	logger       *slog.Logger
}

// NewClient authenticates against the Bot API configured in cfg.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("telegram: config is required")
	}
	endpoint := strings.TrimRight(cfg.Telegram.APIEndpoint, "/") + "/bot%s/%s"
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Telegram.BotToken, endpoint)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "telegram", "authenticate", "check telegram.bot_token", err)
	}
	client := NewClientWithAPI(cfg, bot, logger)
	client.logger.Info(
		"telegram bot authenticated",
		logging.String(logging.FieldEventType, "telegram_authenticated"),
		logging.String("bot_username", bot.Self.UserName),
	)
	return client, nil
}

// NewClientWithAPI builds a client around an existing API implementation.
func NewClientWithAPI(cfg *config.Config, api API, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		api:          api,
		http:         &http.Client{Timeout: 60 * time.Second},
		adminID:      cfg.Telegram.AdminUserID,
		targetChatID: cfg.Telegram.TargetChatID,
		pollTimeout:  cfg.Telegram.PollTimeout,
		itemStarted:  cfg.Notifications.ItemStarted,
		logger:       logging.NewComponentLogger(logger, "telegram"),
	}
}

// WithHTTPClient replaces the client used for file downloads.
func (c *Client) WithHTTPClient(doer HTTPDoer) *Client {
	c.http = doer
	return c
}

// UploadVideo sends a video file to the target chat with streaming enabled.
func (c *Client) UploadVideo(ctx context.Context, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := tgbotapi.NewVideo(c.targetChatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	if _, err := c.api.Send(video); err != nil {
		return services.Wrap(services.ErrTransferFailed, "telegram", "send video", "", err)
	}
	return nil
}

// SendText sends a plain message to the operator chat.
func (c *Client) SendText(ctx context.Context, text string) error {
	return c.sendText(ctx, c.adminID, 0, text)
}

// SendCheckpoint sends a checkpoint to the operator as a text document. Empty
// checkpoints are sent as a message since a document cannot be empty.
func (c *Client) SendCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) error {
	return c.sendCheckpoint(ctx, c.adminID, cp)
}

// SendReply answers an operator message.
func (c *Client) SendReply(ctx context.Context, chatID int64, replyTo int, reply commands.Reply) error {
	var errs []error
	if strings.TrimSpace(reply.Text) != "" {
		errs = append(errs, c.sendText(ctx, chatID, replyTo, reply.Text))
	}
	if reply.Checkpoint != nil && reply.Checkpoint.Remaining() > 0 {
		errs = append(errs, c.sendCheckpoint(ctx, chatID, *reply.Checkpoint))
	}
	return errors.Join(errs...)
}

func (c *Client) sendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (c *Client) sendCheckpoint(ctx context.Context, chatID int64, cp checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.Remaining() == 0 {
		return c.sendText(ctx, chatID, 0, "📦 "+cp.Caption())
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: cp.FileName(), Bytes: cp.Encode()})
	doc.Caption = cp.Caption()
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("send checkpoint document: %w", err)
	}
	return nil
}

// download fetches an uploaded file by id.
func (c *Client) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("telegram file download returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read telegram file: %w", err)
	}
	if len(body) > maxBatchFileBytes {
		return nil, fmt.Errorf("link file exceeds %d bytes", maxBatchFileBytes)
	}
	return body, nil
}
