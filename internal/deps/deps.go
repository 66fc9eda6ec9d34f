// Package deps reports whether the external binaries the relay shells out to
// are installed.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"linkrelay/internal/config"
)

// Requirement defines an external binary linkrelay relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to capture a version line.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

const versionProbeTimeout = 5 * time.Second

// RelayRequirements lists the binaries needed by the configured resolver
// backends. yt-dlp uses ffmpeg to merge separate video and audio streams.
func RelayRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	for _, backend := range cfg.Resolver.Backends {
		if backend != config.BackendYTDLP {
			continue
		}
		return []Requirement{
			{
				Name:        "yt-dlp",
				Command:     cfg.Resolver.YTDLPBinary,
				Description: "Resolves and downloads renditions",
				VersionArgs: []string{"--version"},
			},
			{
				Name:        "FFmpeg",
				Command:     "ffmpeg",
				Description: "Merges separate video and audio streams",
				Optional:    true,
				VersionArgs: []string{"-version"},
			},
		}
	}
	return nil
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		if len(req.VersionArgs) > 0 {
			status.Version = probeVersion(ctx, resolved, req.VersionArgs)
		}
		results = append(results, status)
	}
	return results
}

// probeVersion returns the first output line of the version command, or ""
// when the binary does not answer in time.
func probeVersion(ctx context.Context, binary string, args []string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, binary, args...).Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
