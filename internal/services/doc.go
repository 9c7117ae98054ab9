// Package services defines shared utilities consumed by the bot handlers, the
// file fetcher, and the media pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp chat IDs, run IDs, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper so failures from external
//     tools cross package boundaries as values with a stable classification.
//   - Timeout classification used by every retry loop that talks to Telegram.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
