package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigPath              = "~/.config/linkrelay/config.toml"
	defaultLogDir                  = "~/.local/share/linkrelay/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultMaxSizeMB               = 49
	defaultTransferTimeoutSeconds  = 600
	defaultResolverTimeoutSeconds  = 120
	defaultYTDLPBinary             = "yt-dlp"
	defaultPollTimeout             = 60
	defaultCheckpointEvery         = 5
	defaultNotificationBuffer      = 256
	defaultNotifyRequestTimeout    = 10
	defaultPlaylistLimit           = 200
	defaultTelegramAPIEndpointBase = "https://api.telegram.org"
)

// Resolver backend names accepted in resolver.backends.
const (
	BackendYTDLP   = "yt-dlp"
	BackendYouTube = "youtube"
)

var defaultResolverBackends = []string{BackendYTDLP, BackendYouTube}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir: defaultTempDir(),
			LogDir:  defaultLogDir,
		},
		Telegram: Telegram{
			PollTimeout: defaultPollTimeout,
			APIEndpoint: defaultTelegramAPIEndpointBase,
		},
		Transfer: Transfer{
			MaxSizeMB:      defaultMaxSizeMB,
			TimeoutSeconds: defaultTransferTimeoutSeconds,
		},
		Resolver: Resolver{
			Backends:       append([]string(nil), defaultResolverBackends...),
			YTDLPBinary:    defaultYTDLPBinary,
			TimeoutSeconds: defaultResolverTimeoutSeconds,
		},
		LinkSource: LinkSource{
			PlaylistLimit: defaultPlaylistLimit,
		},
		Workflow: Workflow{
			CheckpointEvery: defaultCheckpointEvery,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			OperatorChat:   true,
			ItemStarted:    true,
			Buffer:         defaultNotificationBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "linkrelay")
}
