package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"audiotube/internal/config"
	"audiotube/internal/deps"
	"audiotube/internal/youtube"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that a regular file exists and can be read.
func CheckFileReadable(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon status API and the CLI preflight command use it. ffmpeg is
// executed so a broken install is caught, not only a missing one.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	for i, status := range statuses {
		if status.Name == "FFmpeg" && status.Available {
			statuses[i] = deps.CheckFFmpeg(ctx, status.Command)
		}
	}
	return statuses
}

// CheckClientSecrets verifies the OAuth client secrets file parses.
func CheckClientSecrets(path string) Result {
	const name = "YouTube client secrets"
	if _, err := youtube.LoadClientConfig(path); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckYouTubeToken verifies a stored OAuth token exists.
func CheckYouTubeToken(path string) Result {
	const name = "YouTube token"
	token, err := youtube.NewFileTokenStore(path).Load()
	switch {
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	case token == nil:
		return Result{Name: name, Detail: youtube.ErrNotAuthorized.Error()}
	case token.RefreshToken == "" && !token.Valid():
		return Result{Name: name, Detail: "token expired and has no refresh token; run `audiotube auth youtube`"}
	default:
		return Result{Name: name, Passed: true, Detail: path}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
