package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	TempDir       string `toml:"temp_dir"`
	LogDir        string `toml:"log_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
}

// Telegram contains bot credentials and the chats the relay talks to.
type Telegram struct {
	BotToken     string `toml:"bot_token"`
	AdminUserID  int64  `toml:"admin_user_id"`
	TargetChatID int64  `toml:"target_chat_id"`
	PollTimeout  int    `toml:"poll_timeout"`
	APIEndpoint  string `toml:"api_endpoint"`
}

// Transfer contains the upload ceiling and per-item transfer timeout.
type Transfer struct {
	MaxSizeMB      int `toml:"max_size_mb"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Resolver contains configuration for rendition lookup backends.
type Resolver struct {
	Backends       []string `toml:"backends"`
	YTDLPBinary    string   `toml:"ytdlp_binary"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// LinkSource contains configuration for link ingestion.
type LinkSource struct {
	ExpandPlaylists bool `toml:"expand_playlists"`
	PlaylistLimit   int  `toml:"playlist_limit"`
}

// Workflow contains pipeline controller tuning.
type Workflow struct {
	CheckpointEvery int  `toml:"checkpoint_every"`
	StartPaused     bool `toml:"start_paused"`
}

// Notifications contains configuration for operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OperatorChat   bool   `toml:"operator_chat"`
	ItemStarted    bool   `toml:"item_started"`
	// Buffer bounds the async outbox; events beyond it are dropped.
	Buffer         int    `toml:"buffer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for linkrelay.
//
// Configuration sections by subsystem:
//   - Paths: temp, log, and checkpoint directories
//   - Telegram: bot token, operator and destination chats
//   - Transfer: size ceiling and upload timeout
//   - Resolver: rendition backends and yt-dlp binary
//   - LinkSource: playlist expansion
//   - Workflow: checkpoint cadence and start state
//   - Notifications: ntfy and operator chat toggles
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Transfer      Transfer      `toml:"transfer"`
	Resolver      Resolver      `toml:"resolver"`
	LinkSource    LinkSource    `toml:"linksource"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("linkrelay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.TempDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.CheckpointDir) != "" {
		dirs = append(dirs, c.Paths.CheckpointDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxSizeBytes returns the transfer ceiling in bytes (MiB based).
func (c *Config) MaxSizeBytes() int64 {
	return int64(c.Transfer.MaxSizeMB) * 1024 * 1024
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "linkrelay.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "linkrelay.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "linkrelay.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
