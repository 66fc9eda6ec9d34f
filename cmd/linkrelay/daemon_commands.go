package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"linkrelay/internal/daemonctl"
	"linkrelay/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the linkrelay daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the linkrelay daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping relay pipeline...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, pipeline and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot.Status)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(stdout, snapshot, shouldColorize(stdout))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status as JSON")

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the linkrelay daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the configured log level")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(w io.Writer, snapshot daemonctl.Snapshot, colorize bool) {
	status := snapshot.Status
	if status == nil {
		status = &ipc.StatusResponse{}
	}

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(w, line)
	}
	if status.Running {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	for _, check := range snapshot.Checks {
		fmt.Fprintln(w, renderStatusLine(check.Name, statusKindFromPassed(check.Passed), check.Detail, colorize))
	}
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Pipeline", colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range pipelineLines(status, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	for _, line := range renderSectionHeader("Outcomes", colorize) {
		fmt.Fprintln(w, line)
	}
	if status.History.Total() == 0 {
		fmt.Fprintln(w, "No links processed yet")
		return
	}
	rows := [][]string{
		{"Delivered", strconv.Itoa(status.History.Delivered)},
		{"Failed", strconv.Itoa(status.History.Failed)},
		{"Skipped", strconv.Itoa(status.History.Skipped)},
		{"Bytes sent", humanize.IBytes(uint64(status.History.BytesDelivered))},
	}
	fmt.Fprintln(w, renderTable([]column{
		{header: "Outcome"},
		{header: "Count", align: alignRight},
	}, rows))
}

func pipelineLines(status *ipc.StatusResponse, colorize bool) []string {
	summary := status.Workflow
	if summary == nil {
		return []string{renderStatusLine("State", statusError, "unavailable (daemon offline)", colorize)}
	}
	lines := []string{
		renderStatusLine("State", pipelineKind(summary), fmt.Sprintf("%s (run flag %s)", cases.Title(language.Und).String(string(summary.State)), yesNo(summary.RunFlag)), colorize),
		renderStatusLine("Queued", statusInfo, strconv.Itoa(summary.QueueLength), colorize),
	}
	if summary.PendingSkips > 0 {
		lines = append(lines, renderStatusLine("Pending skips", statusInfo, strconv.Itoa(summary.PendingSkips), colorize))
	}
	if summary.CaptionsLeft > 0 {
		lines = append(lines, renderStatusLine("Caption", statusInfo,
			fmt.Sprintf("%q for next %d", summary.StagedCaption, summary.CaptionsLeft), colorize))
	}
	if summary.InFlight != nil {
		lines = append(lines, renderStatusLine("Transferring", statusInfo,
			fmt.Sprintf("%d/%d %s (started %s)", summary.InFlight.Index, summary.InFlight.Total,
				summary.InFlight.Link, humanize.Time(summary.InFlight.StartedAt)), colorize))
	}
	if summary.CheckpointEvery > 0 {
		lines = append(lines, renderStatusLine("Checkpoint", statusInfo,
			fmt.Sprintf("%d/%d delivered since last", summary.CompletedSinceCheckpoint, summary.CheckpointEvery), colorize))
	}
	lines = append(lines, renderStatusLine("Size limit", statusInfo, humanize.IBytes(uint64(summary.CeilingBytes)), colorize))
	if summary.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, summary.LastError, colorize))
	}
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			if dep.Version != "" {
				message += " " + dep.Version
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
