package preflight

import (
	"context"

	"linkrelay/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the startup checks for the given config. The Telegram
// check is skipped when offline is true.
func RunAll(ctx context.Context, cfg *config.Config, offline bool) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.CheckpointDir != "" {
		results = append(results, CheckDirectoryAccess("Checkpoint directory", cfg.Paths.CheckpointDir))
	}
	if !offline {
		results = append(results, CheckTelegram(ctx, cfg.Telegram.APIEndpoint, cfg.Telegram.BotToken))
	}
	return results
}
