// Package textutil normalizes user supplied text: video titles taken from chat
// messages and file names reported by Telegram.
package textutil
