package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/fileid"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"

	"audiotube/internal/services"
)

// Peer downloads a file by its Telegram file ID over a transport other than
// the Bot API file endpoint.
type Peer interface {
	Available() bool
	Download(ctx context.Context, fileID, dest string) error
}

// NoPeer is the Peer used when no MTProto credentials are configured.
var NoPeer Peer = noPeer{}

type noPeer struct{}

func (noPeer) Available() bool { return false }

func (noPeer) Download(context.Context, string, string) error { return ErrUnavailable }

// PeerBackend adapts a Peer to the Backend interface.
type PeerBackend struct {
	peer Peer
}

// NewPeerBackend wraps peer; a nil peer behaves like NoPeer.
func NewPeerBackend(peer Peer) *PeerBackend {
	if peer == nil {
		peer = NoPeer
	}
	return &PeerBackend{peer: peer}
}

func (b *PeerBackend) Name() string { return "mtproto" }

func (b *PeerBackend) Available() bool { return b.peer.Available() }

func (b *PeerBackend) Fetch(ctx context.Context, req Request) error {
	return b.peer.Download(ctx, req.FileID, req.Dest)
}

// MTProtoConfig holds the long-lived app credentials for the MTProto client.
type MTProtoConfig struct {
	AppID       int
	AppHash     string
	BotToken    string
	SessionFile string
}

// MTProtoPeer downloads files through a bot-authorized MTProto session. Bot
// API file IDs embed the MTProto location, so no URL resolution is needed and
// the Bot API download size limit does not apply.
type MTProtoPeer struct {
	cfg MTProtoConfig
	mu  sync.Mutex
}

// NewMTProtoPeer returns NoPeer unless both app ID and hash are set.
func NewMTProtoPeer(cfg MTProtoConfig) Peer {
	if cfg.AppID == 0 || cfg.AppHash == "" || cfg.BotToken == "" {
		return NoPeer
	}
	return &MTProtoPeer{cfg: cfg}
}

func (p *MTProtoPeer) Available() bool { return true }

// Download connects, authorizes as the bot when the stored session is not
// yet authorized, and streams the file to dest. Calls are serialized because
// the session file is shared.
func (p *MTProtoPeer) Download(ctx context.Context, fileID, dest string) error {
	id, err := fileid.DecodeFileID(fileID)
	if err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "mtproto", "decode file id", err)
	}
	location, ok := id.AsInputFileLocation()
	if !ok {
		return services.Wrap(services.ErrValidation, "fetch", "mtproto", fmt.Sprintf("file id type %v has no location", id.Type), nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if dir := filepath.Dir(p.cfg.SessionFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create mtproto session dir: %w", err)
		}
	}
	client := telegram.NewClient(p.cfg.AppID, p.cfg.AppHash, telegram.Options{
		SessionStorage: &tdsession.FileStorage{Path: p.cfg.SessionFile},
	})
	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("mtproto auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, p.cfg.BotToken); err != nil {
				return fmt.Errorf("mtproto bot login: %w", err)
			}
		}
		if _, err := downloader.NewDownloader().Download(client.API(), location).ToPath(ctx, dest); err != nil {
			return fmt.Errorf("mtproto download: %w", err)
		}
		return nil
	})
}

