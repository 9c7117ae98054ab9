package session

import "time"

// State is the position of a chat in the upload conversation.
type State string

const (
	StateAwaitingPassword State = "awaiting_password"
	StateAwaitingBoth     State = "awaiting_both"
	StateAwaitingTitle    State = "awaiting_title"
	StateAwaitingAudio    State = "awaiting_audio"
	StateProcessing       State = "processing"
)

// States lists every state in conversation order.
var States = []State{StateAwaitingPassword, StateAwaitingBoth, StateAwaitingTitle, StateAwaitingAudio, StateProcessing}

// Authenticated reports whether the chat has passed the password gate and is
// still collecting input.
func (s State) Authenticated() bool {
	return s == StateAwaitingBoth || s == StateAwaitingTitle || s == StateAwaitingAudio
}

// Session is the per-chat record. AudioPath is owned by the store until the
// session enters processing, at which point it moves into the Run.
type Session struct {
	ChatID           int64
	State            State
	AudioPath        string
	Title            string
	PasswordAttempts int
	LastActivity     time.Time
	CreatedAt        time.Time
	InputKind        string
	SourceName       string
	RunID            string
}

// Audio describes a downloaded audio payload handed to the machine.
type Audio struct {
	Path       string
	Kind       string
	SourceName string
}

// Run is the immutable work order produced when a session completes. The run
// owns AudioPath from this point on.
type Run struct {
	ID         string
	ChatID     int64
	AudioPath  string
	Title      string
	InputKind  string
	SourceName string
}

// Outcome is the result of feeding one event to the machine.
type Outcome struct {
	// Reply is the text to send back; empty means no reply.
	Reply string
	// State is the chat's state afterwards; empty when no session exists.
	State State
	// Run is set exactly when this event moved the session into processing.
	Run *Run
}
