package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"audiotube/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, tools, and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, !offline)
			printPreflight(cmd.OutOrStdout(), results, colorEnabled(cmd.OutOrStdout()))
			if preflight.Failed(results) {
				return errors.New("preflight failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that contact Telegram")
	return cmd
}

func printPreflight(out io.Writer, results []preflight.Result, color bool) {
	for _, r := range results {
		mark, colors := "ok  ", text.Colors{text.FgGreen}
		switch {
		case !r.Passed && r.Optional:
			mark, colors = "warn", text.Colors{text.FgYellow}
		case !r.Passed:
			mark, colors = "FAIL", text.Colors{text.FgRed}
		}
		if color {
			mark = colors.Sprint(mark)
		}
		line := fmt.Sprintf("[%s] %s", mark, r.Name)
		if r.Detail != "" {
			line += ": " + r.Detail
		}
		fmt.Fprintln(out, line)
	}
}

func colorEnabled(out io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
