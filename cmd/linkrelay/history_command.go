package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"linkrelay/internal/history"
	"linkrelay/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent delivery outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Records)
				}
				if len(resp.Records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No outcomes recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "ID", align: alignRight},
					{header: "Outcome"},
					{header: "Size", align: alignRight},
					{header: "Finished"},
					{header: "Link", maxWidth: linkColumnWidth},
					{header: "Detail", maxWidth: 40},
				}, historyRows(resp.Records)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of outcomes to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print outcomes as JSON")
	return cmd
}

func historyRows(records []history.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		size := "-"
		if rec.SizeBytes > 0 {
			size = humanize.IBytes(uint64(rec.SizeBytes))
		}
		detail := rec.Reason
		if rec.Outcome == history.OutcomeDelivered && rec.Caption != "" {
			detail = "caption: " + rec.Caption
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			string(rec.Outcome),
			size,
			humanize.Time(rec.FinishedAt),
			rec.Link,
			strings.TrimSpace(detail),
		})
	}
	return rows
}
