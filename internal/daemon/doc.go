// Package daemon coordinates the long-running audiotube process.
//
// It wires configuration, the session machine, the download chain, the
// pipeline worker pool, and the Telegram polling loop into a single lifecycle
// with flock-based locking to prevent multiple instances per state directory.
// When enabled it also serves a small read-only JSON API with daemon status
// and recent uploads.
//
// Keep orchestration logic here: conversation rules live in session, media
// work in transcode and youtube, and the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
