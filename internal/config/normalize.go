package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTelegram(); err != nil {
		return err
	}
	c.normalizeTransfer()
	c.normalizeResolver()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir()
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CheckpointDir, err = expandPath(strings.TrimSpace(c.Paths.CheckpointDir)); err != nil {
		return fmt.Errorf("paths.checkpoint_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() error {
	// Environment values take precedence over the config file.
	c.Telegram.BotToken = stringFromEnv("TELEGRAM_BOT_TOKEN", strings.TrimSpace(c.Telegram.BotToken))
	id, err := int64FromEnv("TELEGRAM_ADMIN_ID", c.Telegram.AdminUserID)
	if err != nil {
		return fmt.Errorf("telegram.admin_user_id: %w", err)
	}
	c.Telegram.AdminUserID = id
	if id, err = int64FromEnv("TELEGRAM_TARGET_CHAT_ID", c.Telegram.TargetChatID); err != nil {
		return fmt.Errorf("telegram.target_chat_id: %w", err)
	}
	c.Telegram.TargetChatID = id
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
	c.Telegram.APIEndpoint = strings.TrimRight(strings.TrimSpace(c.Telegram.APIEndpoint), "/")
	if c.Telegram.APIEndpoint == "" {
		c.Telegram.APIEndpoint = defaultTelegramAPIEndpointBase
	}
	return nil
}

func (c *Config) normalizeTransfer() {
	if c.Transfer.MaxSizeMB <= 0 {
		c.Transfer.MaxSizeMB = defaultMaxSizeMB
	}
	if c.Transfer.TimeoutSeconds <= 0 {
		c.Transfer.TimeoutSeconds = defaultTransferTimeoutSeconds
	}
}

func (c *Config) normalizeResolver() {
	backends := make([]string, 0, len(c.Resolver.Backends))
	seen := make(map[string]struct{}, len(c.Resolver.Backends))
	for _, backend := range c.Resolver.Backends {
		normalized := strings.ToLower(strings.TrimSpace(backend))
		if normalized == "" {
			continue
		}
		if normalized == "ytdlp" {
			normalized = BackendYTDLP
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		backends = append(backends, normalized)
	}
	if len(backends) == 0 {
		backends = append(backends, defaultResolverBackends...)
	}
	c.Resolver.Backends = backends
	c.Resolver.YTDLPBinary = strings.TrimSpace(c.Resolver.YTDLPBinary)
	if c.Resolver.YTDLPBinary == "" {
		c.Resolver.YTDLPBinary = defaultYTDLPBinary
	}
	if c.Resolver.TimeoutSeconds <= 0 {
		c.Resolver.TimeoutSeconds = defaultResolverTimeoutSeconds
	}
	if c.LinkSource.PlaylistLimit < 0 {
		c.LinkSource.PlaylistLimit = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.CheckpointEvery <= 0 {
		c.Workflow.CheckpointEvery = defaultCheckpointEvery
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = stringFromEnv("NTFY_TOPIC", strings.TrimSpace(c.Notifications.NtfyTopic))
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.Buffer <= 0 {
		c.Notifications.Buffer = defaultNotificationBuffer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func stringFromEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
