package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"linkrelay/internal/ipc"
	"linkrelay/internal/linksource"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and steer the relay queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueSkipCommand(ctx))
	queueCmd.AddCommand(newQueueCaptionCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueExportCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var batchFile string
	cmd := &cobra.Command{
		Use:   "add [link...]",
		Short: "Queue links for delivery",
		Long: "Queue one or more http(s) links. Use --file to read a batch file with one\n" +
			"link per line; blank lines are ignored and the batch is rejected if any\n" +
			"line is not a link.",
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := collectLinks(args, batchFile)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(links)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d link(s)\n", resp.Added)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&batchFile, "file", "f", "", "Read links from a batch file")
	return cmd
}

func collectLinks(args []string, batchFile string) ([]string, error) {
	links := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			links = append(links, trimmed)
		}
	}
	if path := strings.TrimSpace(batchFile); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer file.Close()
		batch, err := linksource.FromBatch(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		links = append(links, batch...)
	}
	if len(links) == 0 {
		return nil, errors.New("no links given; pass links as arguments or use --file")
	}
	return links, nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List links still waiting in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remaining()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Checkpoint)
				}
				links := resp.Checkpoint.Links
				if len(links) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(links))
				for i, link := range links {
					rows = append(rows, []string{strconv.Itoa(i + 1), link})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "#", align: alignRight},
					{header: "Link", maxWidth: linkColumnWidth},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the remaining links as JSON")
	return cmd
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause after the current transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s\n", resp.State)
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume processing the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s\n", resp.State)
				return nil
			})
		},
	}
}

func newQueueSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip [count]",
		Short: "Skip the next queued links (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 1 {
				n, err := parsePositive(args[0])
				if err != nil {
					return err
				}
				count = n
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Skip(count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d link(s) will be skipped\n", resp.PendingSkips)
				return nil
			})
		},
	}
}

func newQueueCaptionCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "caption <text>",
		Short: "Caption the next delivered files",
		Long: "Stage a caption for the next --count delivered files. A new caption\n" +
			"replaces any caption still pending.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("caption text is empty")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Caption(count, text); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Caption staged for the next %d file(s)\n", count)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of files to caption")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued link and pending directive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d link(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func newQueueExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the remaining links to a checkpoint file",
		Long: "Write the remaining links, one per line. Without --output the file is\n" +
			"created in the current directory using the checkpoint naming scheme;\n" +
			"use --output - to print to stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remaining()
				if err != nil {
					return err
				}
				cp := resp.Checkpoint
				target := strings.TrimSpace(output)
				if target == "-" {
					_, err := cmd.OutOrStdout().Write(cp.Encode())
					return err
				}
				if target == "" {
					target = cp.FileName()
				}
				if dir := filepath.Dir(target); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return fmt.Errorf("create export directory: %w", err)
					}
				}
				if err := os.WriteFile(target, cp.Encode(), 0o644); err != nil {
					return fmt.Errorf("write checkpoint: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d link(s) to %s\n", cp.Remaining(), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file, or - for stdout")
	return cmd
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", raw)
	}
	return n, nil
}
