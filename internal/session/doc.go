// Package session implements the per-chat upload conversation.
//
// A Store keeps at most one Session per chat and owns any downloaded audio the
// session holds. The Machine applies chat events (password attempts, titles,
// audio deliveries) to the store, gating on a shared password and accepting
// audio and title in either order. When both are present the session enters
// processing and a Run is returned; ownership of the audio file moves to the
// run. Waiting sessions expire after a period of inactivity, checked on every
// inbound event; processing sessions are removed only through Finish.
package session
