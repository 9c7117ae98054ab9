package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"audiotube/internal/history"
	"audiotube/internal/textutil"
)

const historyTitleWidth = 40

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var chatID int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit, chatID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No uploads recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Only show runs from this chat ID")

	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			removed, err := store.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) older than %d day(s)\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Age in days beyond which runs are deleted")
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("upload history is disabled (history.enabled = false)")
	}
	return history.Open(cfg)
}

func renderHistory(records []history.Record) string {
	headers := []string{"Started", "Chat", "Title", "Status", "Took", "Result"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		result := rec.URL
		if result == "" {
			result = textutil.Truncate(rec.Error, historyTitleWidth)
		}
		took := "-"
		if d := rec.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.FormatInt(rec.ChatID, 10),
			textutil.Truncate(rec.Title, historyTitleWidth),
			string(rec.Status),
			took,
			result,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft})
}
