// Package bot adapts Telegram updates to the session state machine.
//
// Updates are long-polled with the Bot API client, classified into commands,
// text, audio, and unknown payloads, and queued per chat so one chat's events
// are handled in order while other chats proceed. Audio payloads are fetched
// through the fetch package before they reach the machine; the Bot API file
// endpoint is exposed to it as a FileTransport.
package bot
