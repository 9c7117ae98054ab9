package preflight

import (
	"context"

	"audiotube/internal/config"
	"audiotube/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// RunAll executes all applicable preflight checks for the given config.
// Network checks are skipped when online is false.
func RunAll(ctx context.Context, cfg *config.Config, online bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckFileReadable("Cover image", cfg.Paths.ImageFile))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromDependency(status))
	}

	if cfg.YouTube.Enabled {
		results = append(results, CheckClientSecrets(cfg.YouTube.ClientSecrets))
		results = append(results, CheckYouTubeToken(cfg.YouTube.TokenFile))
	}

	if online {
		results = append(results, CheckTelegram(ctx, cfg.Telegram.APIEndpoint, cfg.Telegram.BotToken))
	}

	return results
}

func fromDependency(status deps.Status) Result {
	detail := status.Detail
	if detail == "" {
		detail = status.Command
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   detail,
	}
}
