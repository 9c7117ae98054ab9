package session

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"audiotube/internal/logging"
	"audiotube/internal/textutil"
)

// MachineConfig holds the password gate and title limits.
type MachineConfig struct {
	Password    string
	MaxAttempts int
	MaxTitle    int
	// NewRunID generates run identifiers; defaults to random UUIDs.
	NewRunID func() string
}

// Machine applies chat events to the Store. Every method performs its whole
// transition under the store lock, so entering processing and producing the
// Run happen together and at most once per session.
type Machine struct {
	store  *Store
	cfg    MachineConfig
	logger *slog.Logger
}

// NewMachine binds a state machine to store.
func NewMachine(store *Store, cfg MachineConfig, logger *slog.Logger) *Machine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	return &Machine{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "session"),
	}
}

// Store exposes the backing store for read-only inspection.
func (m *Machine) Store() *Store {
	return m.store
}

// Sweep evicts expired waiting sessions across all chats.
func (m *Machine) Sweep() []int64 {
	return m.store.SweepExpired(m.store.now())
}

// Start answers the /start command. It never changes state.
func (m *Machine) Start(chatID int64) Outcome {
	out := Outcome{Reply: MsgStart}
	if sess, ok := m.store.Get(chatID); ok {
		out.State = sess.State
	}
	return out
}

// HandleText applies a plain text message: a password attempt, a title, or an
// informational reply depending on the chat's state.
func (m *Machine) HandleText(chatID int64, text string) Outcome {
	text = strings.TrimSpace(text)

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	sess, ok := m.store.sessions[chatID]
	if !ok {
		if text != m.cfg.Password {
			return Outcome{Reply: MsgNoSession}
		}
		now := m.store.now()
		m.store.sessions[chatID] = &Session{
			ChatID:       chatID,
			State:        StateAwaitingBoth,
			LastActivity: now,
			CreatedAt:    now,
		}
		m.logger.Info("password accepted; session created",
			logging.ChatID(chatID),
			logging.String(logging.FieldEventType, "session_created"),
		)
		return Outcome{Reply: MsgPasswordAccepted, State: StateAwaitingBoth}
	}

	switch {
	case sess.State == StateAwaitingPassword:
		return m.checkPasswordLocked(sess, text)
	case sess.State.Authenticated():
		return m.storeTitleLocked(sess, text)
	default:
		return Outcome{Reply: MsgProcessing, State: sess.State}
	}
}

func (m *Machine) checkPasswordLocked(sess *Session, text string) Outcome {
	sess.LastActivity = m.store.now()
	if text == m.cfg.Password {
		sess.State = StateAwaitingBoth
		m.logger.Info("password accepted",
			logging.ChatID(sess.ChatID),
			logging.Bool("audio_pending", sess.AudioPath != ""),
			logging.String(logging.FieldEventType, "password_accepted"),
		)
		return Outcome{Reply: MsgPasswordAccepted, State: sess.State}
	}
	sess.PasswordAttempts++
	remaining := m.cfg.MaxAttempts - sess.PasswordAttempts
	if remaining <= 0 {
		m.store.deleteLocked(sess.ChatID)
		logging.WarnWithContext(m.logger, "password attempts exhausted; session cancelled", "password_exhausted",
			logging.ChatID(sess.ChatID),
			logging.Int("attempts", sess.PasswordAttempts),
			logging.String(logging.FieldErrorHint, "user must send /start and the password again"),
			logging.String(logging.FieldImpact, "pending audio discarded"),
		)
		return Outcome{Reply: MsgAttemptsExhausted}
	}
	m.logger.Info("password rejected",
		logging.ChatID(sess.ChatID),
		logging.Int("remaining", remaining),
		logging.String(logging.FieldEventType, "password_rejected"),
	)
	return Outcome{Reply: WrongPassword(remaining), State: sess.State}
}

func (m *Machine) storeTitleLocked(sess *Session, text string) Outcome {
	title := textutil.NormalizeTitle(text, m.cfg.MaxTitle)
	if title == "" {
		return Outcome{Reply: MsgEmptyTitle, State: sess.State}
	}
	sess.Title = title
	sess.LastActivity = m.store.now()
	if sess.AudioPath != "" {
		return m.beginRunLocked(sess)
	}
	sess.State = StateAwaitingAudio
	m.logger.Info("title stored; waiting for audio",
		logging.ChatID(sess.ChatID),
		logging.String("title", sess.Title),
		logging.String(logging.FieldEventType, "title_stored"),
	)
	return Outcome{Reply: MsgTitleStored, State: sess.State}
}

// BeginAudio is consulted before an audio payload is downloaded. proceed is
// false when the chat is processing and the payload must be ignored.
func (m *Machine) BeginAudio(chatID int64) (out Outcome, proceed bool) {
	sess, ok := m.store.Get(chatID)
	switch {
	case ok && sess.State == StateProcessing:
		return Outcome{Reply: MsgProcessing, State: sess.State}, false
	case ok && sess.State.Authenticated():
		return Outcome{Reply: MsgAudioAwaiting, State: sess.State}, true
	case ok:
		return Outcome{Reply: MsgAudioNeedsPassword, State: sess.State}, true
	default:
		return Outcome{Reply: MsgAudioNeedsPassword}, true
	}
}

// AttachAudio hands a downloaded audio file to the chat's session. The store
// takes ownership of audio.Path unless the chat is already processing, in
// which case the file is deleted.
func (m *Machine) AttachAudio(chatID int64, audio Audio) Outcome {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	now := m.store.now()
	sess, ok := m.store.sessions[chatID]
	if !ok {
		m.store.sessions[chatID] = &Session{
			ChatID:       chatID,
			State:        StateAwaitingPassword,
			AudioPath:    audio.Path,
			InputKind:    audio.Kind,
			SourceName:   audio.SourceName,
			LastActivity: now,
			CreatedAt:    now,
		}
		m.logger.Info("audio stored; waiting for password",
			logging.ChatID(chatID),
			logging.String("input_kind", audio.Kind),
			logging.String(logging.FieldEventType, "audio_pending_password"),
		)
		return Outcome{Reply: MsgAudioNeedsPassword, State: StateAwaitingPassword}
	}

	if sess.State == StateProcessing {
		m.store.discardLocked(chatID, audio.Path)
		return Outcome{Reply: MsgProcessing, State: sess.State}
	}

	if sess.AudioPath != "" && sess.AudioPath != audio.Path {
		m.store.discardLocked(chatID, sess.AudioPath)
	}
	sess.AudioPath = audio.Path
	sess.InputKind = audio.Kind
	sess.SourceName = audio.SourceName
	sess.LastActivity = now

	if sess.State == StateAwaitingPassword {
		return Outcome{Reply: MsgAudioNeedsPassword, State: sess.State}
	}
	if sess.Title != "" {
		return m.beginRunLocked(sess)
	}
	sess.State = StateAwaitingTitle
	m.logger.Info("audio stored; waiting for title",
		logging.ChatID(chatID),
		logging.String("input_kind", audio.Kind),
		logging.String(logging.FieldEventType, "audio_stored"),
	)
	return Outcome{Reply: MsgAudioStored, State: sess.State}
}

// beginRunLocked moves a complete session into processing and transfers
// ownership of its audio file to the returned Run.
func (m *Machine) beginRunLocked(sess *Session) Outcome {
	run := &Run{
		ID:         m.cfg.NewRunID(),
		ChatID:     sess.ChatID,
		AudioPath:  sess.AudioPath,
		Title:      sess.Title,
		InputKind:  sess.InputKind,
		SourceName: sess.SourceName,
	}
	sess.State = StateProcessing
	sess.RunID = run.ID
	sess.AudioPath = ""
	m.logger.Info("session complete; run scheduled",
		logging.ChatID(sess.ChatID),
		logging.RunID(run.ID),
		logging.String("title", run.Title),
		logging.String(logging.FieldEventType, "run_scheduled"),
	)
	return Outcome{Reply: MsgDispatched, State: StateProcessing, Run: run}
}

// Finish removes the processing session for runID. It is the only path that
// tears down a processing session.
func (m *Machine) Finish(chatID int64, runID string) bool {
	return m.store.Remove(chatID, runID)
}

