package fetch

import (
	"context"
	"fmt"
)

// DirectOptions configures the Bot API download backend.
type DirectOptions struct {
	Attempts        int
	LocatorAttempts int
	Sleep           Sleeper
}

// DirectBackend downloads through the Bot API file endpoint, retrying
// timeouts with exponential backoff. Any other error aborts at once.
type DirectBackend struct {
	transport Transport
	opts      DirectOptions
}

// NewDirectBackend builds the last-resort backend.
func NewDirectBackend(transport Transport, opts DirectOptions) *DirectBackend {
	if opts.Attempts <= 0 {
		opts.Attempts = 6
	}
	if opts.LocatorAttempts <= 0 {
		opts.LocatorAttempts = 4
	}
	return &DirectBackend{transport: transport, opts: opts}
}

func (b *DirectBackend) Name() string { return "direct" }

func (b *DirectBackend) Available() bool { return b.transport != nil }

// Fetch resolves the file URL and downloads it. Each attempt resolves afresh
// because Bot API file URLs are only valid for a limited time.
func (b *DirectBackend) Fetch(ctx context.Context, req Request) error {
	exhausted, err := retryTimeouts(ctx, b.opts.Attempts, directDelay, b.opts.Sleep, func(ctx context.Context) error {
		url, err := resolveURL(ctx, b.transport, req.FileID, b.opts.LocatorAttempts, b.opts.Sleep)
		if err != nil {
			return permanentError{err}
		}
		return b.transport.Download(ctx, url, req.Dest)
	})
	if exhausted {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, b.opts.Attempts, err)
	}
	return err
}
