// Package notifications delivers operator alerts via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Upload results
// and handler errors can be switched off independently. Chat users never see
// these messages; they go to whoever runs the bot.
package notifications
