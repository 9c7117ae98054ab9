// Command audiotube runs the Telegram-to-YouTube audio bot and its operator
// tooling.
//
// `audiotube run` starts the daemon in the foreground. The remaining
// subcommands manage configuration, authorize the YouTube channel, check the
// host, inspect upload history, and query a running daemon's status API.
package main
