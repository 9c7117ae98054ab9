// Package jobs runs pipeline work off the chat event path.
//
// The Scheduler bounds concurrent runs with a weighted semaphore and returns
// one Result per job over a buffered channel. The Notifier consumes that
// result, sends the chat its single terminal message, and removes the
// processing session. Dispatcher ties both together for the bot.
package jobs
