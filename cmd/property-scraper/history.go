package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/county-property-scraper/pkg/history"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent entry runs from the history database",
		RunE:  runHistoryCmd,
	}

	cmd.Flags().String("history-db", getEnv("SCRAPER_HISTORY_DB", ""),
		"SQLite history database (env SCRAPER_HISTORY_DB)")
	cmd.Flags().IntP("limit", "n", history.DefaultRecentLimit, "Number of runs to show")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("history-db")
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("--history-db is required")
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	opts := history.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := history.Open(cmd.Context(), path, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

func printHistory(w io.Writer, runs []history.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Started", "Group", "Label", "Status", "Rows", "Pages", "Reason", "Elapsed"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Group,
			r.Label,
			r.Status,
			r.Rows,
			r.Pages,
			r.Reason,
			r.Elapsed.String(),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
