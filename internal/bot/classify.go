package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"audiotube/internal/textutil"
)

// EventKind is the coarse class of an inbound update.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCommand
	EventText
	EventAudio
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// AudioRef points at an audio-like attachment. SourceName is the sender's
// file name reduced to a safe base name.
type AudioRef struct {
	FileID     string
	Kind       string // voice | audio | document
	SourceName string
	MimeType   string
	Size       int64
}

// Event is a classified update. ChatID is zero for updates that carry no
// message and are ignored.
type Event struct {
	Kind    EventKind
	ChatID  int64
	UserID  int64
	Command string
	Text    string
	Audio   *AudioRef
}

// Classify sorts an update into command, text, audio or unknown.
func Classify(update tgbotapi.Update) Event {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return Event{Kind: EventUnknown}
	}
	ev := Event{Kind: EventUnknown, ChatID: msg.Chat.ID}
	if msg.From != nil {
		ev.UserID = msg.From.ID
	}

	switch {
	case msg.IsCommand():
		ev.Kind = EventCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Text = msg.CommandArguments()
	case msg.Voice != nil:
		ev.Kind = EventAudio
		ev.Audio = &AudioRef{
			FileID:     msg.Voice.FileID,
			Kind:       "voice",
			SourceName: msg.Voice.FileUniqueID,
			MimeType:   msg.Voice.MimeType,
			Size:       int64(msg.Voice.FileSize),
		}
	case msg.Audio != nil:
		ev.Kind = EventAudio
		ev.Audio = &AudioRef{
			FileID:     msg.Audio.FileID,
			Kind:       "audio",
			SourceName: textutil.SanitizeFileName(msg.Audio.FileName),
			MimeType:   msg.Audio.MimeType,
			Size:       int64(msg.Audio.FileSize),
		}
	case msg.Document != nil && IsAudioMIME(msg.Document.MimeType):
		ev.Kind = EventAudio
		ev.Audio = &AudioRef{
			FileID:     msg.Document.FileID,
			Kind:       "document",
			SourceName: textutil.SanitizeFileName(msg.Document.FileName),
			MimeType:   msg.Document.MimeType,
			Size:       int64(msg.Document.FileSize),
		}
	case msg.Text != "":
		ev.Kind = EventText
		ev.Text = msg.Text
	}
	return ev
}

// IsAudioMIME reports whether a declared document type is audio. Ogg
// containers are accepted under any top-level type.
func IsAudioMIME(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(mime, "audio/") || strings.HasSuffix(mime, "/ogg")
}
