package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var commandContext = exec.CommandContext

const probeTimeout = 5 * time.Second

// CheckFFmpeg runs `ffmpeg -version` and reports whether it exits cleanly.
// A binary that is on PATH but cannot run counts as unavailable.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result := Status{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Converts audio and renders the still-image video",
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	output, err := commandContext(ctx, resolved, "-version").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("%s -version failed: %v", binary, err)
		return result
	}
	result.Available = true
	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		result.Detail = strings.TrimSpace(line)
	}
	return result
}

// FFmpegProbe answers "is ffmpeg usable" for every incoming audio message.
// A positive answer is cached for ttl; a negative one is rechecked each call
// so installing ffmpeg takes effect without a restart.
type FFmpegProbe struct {
	binary string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	okUntil time.Time
}

// NewFFmpegProbe builds a probe for binary.
func NewFFmpegProbe(binary string, ttl time.Duration) *FFmpegProbe {
	return &FFmpegProbe{binary: binary, ttl: ttl, now: time.Now}
}

// Available reports whether ffmpeg runs.
func (p *FFmpegProbe) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Before(p.okUntil) {
		return true
	}
	if !CheckFFmpeg(ctx, p.binary).Available {
		return false
	}
	p.okUntil = now.Add(p.ttl)
	return true
}
