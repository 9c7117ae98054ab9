// Package fetch downloads Telegram attachments to local disk.
//
// A Fetcher walks its backends in priority order: aria2c against the Bot API
// file URL, then an MTProto session when app credentials are configured, then
// a plain HTTP download through the Bot API. URL resolution retries timeouts
// with linear backoff; the direct backend retries download timeouts with
// exponential backoff. Partial output from a failed backend is removed before
// the next one runs.
package fetch
