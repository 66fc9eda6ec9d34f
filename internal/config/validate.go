package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTelegram() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.bot_token is required. Set TELEGRAM_BOT_TOKEN env var or edit %s (create with 'linkrelay config init')", defaultPath)
	}
	if c.Telegram.AdminUserID == 0 {
		return errors.New("telegram.admin_user_id must be set (or export TELEGRAM_ADMIN_ID)")
	}
	if c.Telegram.TargetChatID == 0 {
		return errors.New("telegram.target_chat_id must be set (or export TELEGRAM_TARGET_CHAT_ID)")
	}
	if _, err := url.ParseRequestURI(c.Telegram.APIEndpoint); err != nil {
		return fmt.Errorf("telegram.api_endpoint: %w", err)
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.MaxSizeMB > 2000 {
		return fmt.Errorf("transfer.max_size_mb must be at most 2000, got %d", c.Transfer.MaxSizeMB)
	}
	return nil
}

func (c *Config) validateResolver() error {
	for _, backend := range c.Resolver.Backends {
		switch backend {
		case BackendYTDLP, BackendYouTube:
		default:
			return fmt.Errorf("resolver.backends: unsupported backend %q (use %q or %q)", backend, BackendYTDLP, BackendYouTube)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL (e.g. https://ntfy.sh/my-topic), got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
