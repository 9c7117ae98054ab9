package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"audiotube/internal/services"
)

const partSuffix = ".part"

var commandContext = exec.CommandContext

// Aria2Options configures the aria2c invocation.
type Aria2Options struct {
	Binary          string
	Connections     int
	RetryWait       int
	TimeoutSeconds  int
	MinSplitSize    string
	LocatorAttempts int
	Sleep           Sleeper
}

// Aria2Backend downloads the resolved file URL with aria2c using several
// connections. Any non-zero exit, including a missing binary, fails the
// backend.
type Aria2Backend struct {
	resolver Resolver
	opts     Aria2Options
}

// NewAria2Backend builds the multi-connection backend.
func NewAria2Backend(resolver Resolver, opts Aria2Options) *Aria2Backend {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "aria2c"
	}
	if opts.Connections <= 0 {
		opts.Connections = 16
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 5
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 600
	}
	if strings.TrimSpace(opts.MinSplitSize) == "" {
		opts.MinSplitSize = "1M"
	}
	if opts.LocatorAttempts <= 0 {
		opts.LocatorAttempts = 4
	}
	return &Aria2Backend{resolver: resolver, opts: opts}
}

func (b *Aria2Backend) Name() string { return "aria2c" }

func (b *Aria2Backend) Available() bool { return b.resolver != nil }

// Fetch resolves the URL and runs aria2c into a .part file that is renamed to
// req.Dest on success.
func (b *Aria2Backend) Fetch(ctx context.Context, req Request) error {
	url, err := resolveURL(ctx, b.resolver, req.FileID, b.opts.LocatorAttempts, b.opts.Sleep)
	if err != nil {
		return err
	}
	dir := filepath.Dir(req.Dest)
	part := filepath.Base(req.Dest) + partSuffix
	args := b.args(dir, part, url)

	cmd := commandContext(ctx, b.opts.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(filepath.Join(dir, part))
		_ = os.Remove(filepath.Join(dir, part+".aria2"))
		return services.Wrap(services.ErrExternalTool, "fetch", "aria2c", lastLine(output), err)
	}
	if err := moveFile(filepath.Join(dir, part), req.Dest); err != nil {
		return fmt.Errorf("move aria2c output: %w", err)
	}
	return nil
}

func (b *Aria2Backend) args(dir, out, url string) []string {
	connections := strconv.Itoa(b.opts.Connections)
	return []string{
		"--check-certificate=true",
		"-c",
		"-x" + connections,
		"-s" + connections,
		"--max-tries=0",
		"--retry-wait=" + strconv.Itoa(b.opts.RetryWait),
		"--timeout=" + strconv.Itoa(b.opts.TimeoutSeconds),
		"--min-split-size=" + b.opts.MinSplitSize,
		"--allow-overwrite=true",
		"--continue=true",
		"--console-log-level=warn",
		"--summary-interval=0",
		"--dir", dir,
		"--out", out,
		url,
	}
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "exited with error"
}

