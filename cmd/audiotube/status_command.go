package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audiotube/internal/api"
	"audiotube/internal/config"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := fetchStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func statusURL(bind string) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "", fmt.Errorf("api.bind %q: %w", bind, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/status", nil
}

func fetchStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	if !cfg.API.Enabled {
		return nil, errors.New("status api is disabled (api.enabled = false)")
	}
	url, err := statusURL(cfg.API.Bind)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.API.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon at %s: %w; is `audiotube run` active?", cfg.API.Bind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("daemon status: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("daemon status: unexpected status %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

func printStatus(out io.Writer, status *api.DaemonStatus) {
	fmt.Fprintf(out, "Running: %s (pid %d)\n", yesNo(status.Running), status.PID)
	if status.Bot != "" {
		fmt.Fprintf(out, "Bot: @%s\n", status.Bot)
	}
	if status.StartedAt != "" {
		fmt.Fprintf(out, "Started: %s\n", status.StartedAt)
	}
	fmt.Fprintf(out, "Uploads enabled: %s\n", yesNo(status.UploadsOn))
	fmt.Fprintf(out, "Workers: %d active, %d queued, %d capacity\n",
		status.Workers.Active, status.Workers.Queued, status.Workers.Capacity)
	fmt.Fprintf(out, "Active chats: %d\n", status.ActiveChats)

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Session state", "Count"}, sortedCounts(status.Sessions), []columnAlignment{alignLeft, alignRight}))

	if len(status.Downloaders) > 0 {
		names := make([]string, 0, len(status.Downloaders))
		for name := range status.Downloaders {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, yesNo(status.Downloaders[name])})
		}
		fmt.Fprintln(out, renderTable([]string{"Downloader", "Available"}, rows, nil))
	}

	if len(status.Dependencies) > 0 {
		rows := make([][]string, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			rows = append(rows, []string{dep.Name, yesNo(dep.Available), dep.Detail})
		}
		fmt.Fprintln(out, renderTable([]string{"Dependency", "Available", "Detail"}, rows, nil))
	}

	if len(status.UploadStats) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Upload status", "Runs"}, sortedCounts(status.UploadStats), []columnAlignment{alignLeft, alignRight}))
	}
}

func sortedCounts(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprint(counts[key])})
	}
	return rows
}
