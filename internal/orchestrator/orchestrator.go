// Package orchestrator owns the per-user dialogue state machine and
// drives each inbound event through speech recognition, the assistant
// exchange and persistence.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/assistant"
	"github.com/cephalgo/diary-bot/internal/models"
	"github.com/cephalgo/diary-bot/internal/payload"
	"github.com/cephalgo/diary-bot/internal/session"
	"github.com/cephalgo/diary-bot/internal/speech"
	"github.com/cephalgo/diary-bot/internal/storage"
)

// Transport delivers messages back to the chat platform.
type Transport interface {
	SendText(chatID int64, text string) error
	SendVoice(chatID int64, audio []byte, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Agent is the conversational-agent gateway.
type Agent interface {
	NewThread(ctx context.Context) (string, error)
	Ask(ctx context.Context, threadID, utterance, assistantID string) (*assistant.Result, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, lang models.Language) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang models.Language) ([]byte, error)
}

type Translator interface {
	Translate(ctx context.Context, text string, source, target models.Language) (string, error)
}

type Transcoder interface {
	ToMP3(ctx context.Context, audio []byte) ([]byte, error)
}

// Reminders is the per-user trigger table.
type Reminders interface {
	Schedule(userID int64, at models.TimeOfDay) error
	Cancel(userID int64) error
}

// EventKind distinguishes inbound chat events.
type EventKind int

const (
	EventText EventKind = iota
	EventVoice
)

// Event is one inbound user event.
type Event struct {
	Kind        EventKind
	UserID      int64
	ChatID      int64
	Text        string
	VoiceFileID string
	Username    string
	FirstName   string
	LastName    string
}

// AssistantIDs maps the two personas to their remote assistant identifiers.
type AssistantIDs struct {
	Registration string
	Survey       string
}

// Reserved menu command tokens. Receiving one mid-phase does not advance
// the dialogue (transition 5).
var menuCommands = map[string]bool{
	"/start":      true,
	"/headache":   true,
	"/calendar":   true,
	"/statistics": true,
	"/settings":   true,
}

// Orchestrator drives one full turn to completion, including all side
// effects. Turns for the same user are serialized with a per-user lock:
// a scheduler fire and a live chat message may otherwise race on the same
// session and the same survey lookup-then-write sequence.
type Orchestrator struct {
	storage    storage.Storage
	sessions   session.Store
	agent      Agent
	transport  Transport
	recognizer Recognizer
	synth      Synthesizer
	translator Translator
	transcoder Transcoder
	reminders  Reminders
	assistants AssistantIDs
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

type Deps struct {
	Storage    storage.Storage
	Sessions   session.Store
	Agent      Agent
	Transport  Transport
	Recognizer Recognizer
	Synth      Synthesizer
	Translator Translator
	Transcoder Transcoder
	Reminders  Reminders
	Assistants AssistantIDs
	Logger     *zap.Logger
	// Now supplies the reference clock; defaults to time.Now.
	Now func() time.Time
}

func New(deps Deps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		storage:    deps.Storage,
		sessions:   deps.Sessions,
		agent:      deps.Agent,
		transport:  deps.Transport,
		recognizer: deps.Recognizer,
		synth:      deps.Synth,
		translator: deps.Translator,
		transcoder: deps.Transcoder,
		reminders:  deps.Reminders,
		assistants: deps.Assistants,
		logger:     deps.Logger,
		now:        now,
		locks:      make(map[int64]*sync.Mutex),
	}
}

func (o *Orchestrator) userLock(userID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, exists := o.locks[userID]
	if !exists {
		lock = &sync.Mutex{}
		o.locks[userID] = lock
	}
	return lock
}

func (o *Orchestrator) assistantID(persona session.Persona) string {
	if persona == session.PersonaRegistration {
		return o.assistants.Registration
	}
	return o.assistants.Survey
}

// loadSession returns the user's session, rebuilding it lazily from the
// record store when absent.
func (o *Orchestrator) loadSession(ctx context.Context, userID int64) (*session.Session, error) {
	sess, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	user, err := o.storage.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return session.AwaitingLanguage(), nil
	}
	if err != nil {
		return nil, err
	}
	return session.Idle(user.Language), nil
}

// SetLanguage handles the language-selection action. For a new user this
// is transition 1: create the profile and open the registration dialogue.
// An already registered user goes straight into a survey for today.
func (o *Orchestrator) SetLanguage(ctx context.Context, ev Event, lang models.Language) {
	lock := o.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	_, err := o.storage.GetUser(ctx, ev.UserID)
	if err == nil {
		if uerr := o.storage.UpdateUserField(ctx, ev.UserID, "language", lang); uerr != nil {
			o.logger.Error("Failed to update language",
				zap.Error(uerr), zap.Int64("user_id", ev.UserID))
		}
		o.beginSurveyLocked(ctx, ev.UserID, ev.ChatID, lang, o.today())
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		o.logger.Error("Failed to look up user", zap.Error(err), zap.Int64("user_id", ev.UserID))
		o.sendText(ev.ChatID, localized(msgApology, lang))
		return
	}

	now := o.now()
	user := &models.User{
		UserID:    ev.UserID,
		Username:  ev.Username,
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		Language:  lang,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.storage.CreateUser(ctx, user); err != nil {
		o.logger.Error("Failed to create user", zap.Error(err), zap.Int64("user_id", ev.UserID))
		o.sendText(ev.ChatID, localized(msgApology, lang))
		return
	}
	o.logger.Info("Registered new user", zap.Int64("user_id", ev.UserID), zap.String("language", string(lang)))

	o.openPhase(ctx, ev.UserID, ev.ChatID, lang, session.PersonaRegistration, time.Time{})
}

// BeginSurvey is transition 4: open a survey dialogue for the given day.
// It works from a user id alone, so the reminder scheduler can drive it
// without a live inbound message; any in-progress thread is abandoned.
func (o *Orchestrator) BeginSurvey(ctx context.Context, userID, chatID int64, date time.Time) {
	lock := o.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.loadSession(ctx, userID)
	if err != nil {
		o.logger.Error("Failed to load session", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	o.beginSurveyLocked(ctx, userID, chatID, sess.Lang(), date)
}

func (o *Orchestrator) beginSurveyLocked(ctx context.Context, userID, chatID int64, lang models.Language, date time.Time) {
	o.openPhase(ctx, userID, chatID, lang, session.PersonaSurvey, date)
}

// openPhase opens a fresh thread for the persona, sends the fixed
// greeting, speaks the assistant's first question and records the new
// in-progress session. selectedDate is only meaningful for the survey
// persona; zero means today.
func (o *Orchestrator) openPhase(ctx context.Context, userID, chatID int64, lang models.Language, persona session.Persona, selectedDate time.Time) {
	result, err := o.agent.Ask(ctx, "", greetingUtterance, o.assistantID(persona))
	if err != nil {
		o.logger.Error("Failed to open dialogue phase",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("persona", string(persona)))
		o.sendText(chatID, localized(msgApology, lang))
		return
	}

	reply := o.translateReply(ctx, result.Reply, lang)
	o.speak(ctx, chatID, reply, lang)

	sess := session.InProgress(lang, persona, result.ThreadID)
	if !selectedDate.IsZero() {
		sess.SelectedDate = models.DateOnly(selectedDate)
	}
	if err := o.sessions.Put(ctx, userID, sess); err != nil {
		o.logger.Error("Failed to store session", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// GuardMenu applies transition 5: a menu command while a dialogue phase is
// open does not advance the conversation. It returns true when the caller
// may proceed with the menu action.
func (o *Orchestrator) GuardMenu(ctx context.Context, ev Event) bool {
	sess, err := o.loadSession(ctx, ev.UserID)
	if err != nil {
		o.logger.Error("Failed to load session", zap.Error(err), zap.Int64("user_id", ev.UserID))
		return false
	}

	switch sess.Phase {
	case session.PhaseRegistration, session.PhaseSurvey:
		o.sendText(ev.ChatID, localized(msgFinishPhase, sess.Lang()))
		return false
	case session.PhaseAwaitingLanguage:
		o.sendText(ev.ChatID, localized(msgChooseLanguage, sess.Lang()))
		return false
	default:
		return true
	}
}

// HandleTurn runs one full turn of an in-progress dialogue.
func (o *Orchestrator) HandleTurn(ctx context.Context, ev Event) {
	lock := o.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.loadSession(ctx, ev.UserID)
	if err != nil {
		o.logger.Error("Failed to load session", zap.Error(err), zap.Int64("user_id", ev.UserID))
		return
	}
	lang := sess.Lang()

	switch sess.Phase {
	case session.PhaseAwaitingLanguage:
		o.sendText(ev.ChatID, localized(msgChooseLanguage, lang))
		return
	case session.PhaseIdle:
		o.sendText(ev.ChatID, localized(msgVoiceOnly, lang))
		return
	}

	// a. recognized candidate utterance
	candidate, ok := o.candidateUtterance(ctx, ev, lang)
	if !ok {
		return
	}

	// b. reserved menu tokens never advance the dialogue
	if menuCommands[strings.TrimSpace(candidate)] {
		o.sendText(ev.ChatID, localized(msgFinishPhase, lang))
		return
	}

	// c. translate to the assistant's working language, ack the original
	utterance := candidate
	if lang != models.LanguageRussian {
		translated, err := o.translator.Translate(ctx, candidate, lang, models.LanguageRussian)
		if err != nil {
			o.logger.Error("Failed to translate utterance", zap.Error(err), zap.Int64("user_id", ev.UserID))
			o.speak(ctx, ev.ChatID, localized(msgApology, lang), lang)
			return
		}
		utterance = translated
	}
	if ev.Kind == EventVoice {
		o.sendText(ev.ChatID, ackMessage(lang, candidate))
	}

	// d. assistant exchange; failure ends the turn with a spoken apology
	result, err := o.agent.Ask(ctx, sess.ThreadID, utterance, o.assistantID(sess.Persona))
	if err != nil {
		if errors.Is(err, assistant.ErrRunTimeout) {
			o.logger.Warn("Assistant run timed out", zap.Int64("user_id", ev.UserID))
		} else {
			o.logger.Error("Assistant call failed", zap.Error(err), zap.Int64("user_id", ev.UserID))
		}
		o.speak(ctx, ev.ChatID, localized(msgApology, lang), lang)
		return
	}

	// e, f. translate back and speak the reply
	reply := o.translateReply(ctx, result.Reply, lang)
	o.speak(ctx, ev.ChatID, reply, lang)

	sess.ThreadID = result.ThreadID
	if ev.Kind == EventVoice {
		sess.LastVoiceID = ev.VoiceFileID
	}
	if err := o.sessions.Put(ctx, ev.UserID, sess); err != nil {
		o.logger.Error("Failed to store session", zap.Error(err), zap.Int64("user_id", ev.UserID))
	}

	// g. payload extraction and phase routing
	raw, found := payload.Find(result.Messages)
	if !found {
		return
	}
	fields := payload.Normalize(payload.Parse(raw), o.logger)
	if len(fields) == 0 {
		o.logger.Info("Payload parsed to nothing, conversation continues", zap.Int64("user_id", ev.UserID))
		return
	}

	if tod, ok := fields.ReminderTime(); ok {
		if err := o.reminders.Schedule(ev.UserID, tod); err != nil {
			o.logger.Error("Failed to schedule reminder", zap.Error(err), zap.Int64("user_id", ev.UserID))
		}
	}

	if sess.Persona == session.PersonaRegistration {
		o.completeRegistration(ctx, ev, sess, fields)
	} else {
		o.completeSurvey(ctx, ev, sess, fields)
	}
}

// candidateUtterance resolves the text the agent will receive. For voice
// events it downloads, transcodes and recognizes the clip; an empty
// recognition short-circuits the turn with a spoken re-prompt (no agent
// call, no phase change).
func (o *Orchestrator) candidateUtterance(ctx context.Context, ev Event, lang models.Language) (string, bool) {
	if ev.Kind == EventText {
		return ev.Text, true
	}

	audio, err := o.transport.DownloadFile(ctx, ev.VoiceFileID)
	if err != nil {
		o.logger.Error("Failed to download voice clip", zap.Error(err), zap.Int64("user_id", ev.UserID))
		o.sendText(ev.ChatID, localized(msgApology, lang))
		return "", false
	}

	converted, err := o.transcoder.ToMP3(ctx, audio)
	if err != nil {
		o.logger.Error("Failed to transcode voice clip", zap.Error(err), zap.Int64("user_id", ev.UserID))
		o.sendText(ev.ChatID, localized(msgApology, lang))
		return "", false
	}

	recognized, err := o.recognizer.Recognize(ctx, converted, lang)
	if errors.Is(err, speech.ErrNoSpeech) {
		o.speak(ctx, ev.ChatID, localized(msgRepeat, lang), lang)
		return "", false
	}
	if err != nil {
		o.logger.Error("Recognition failed", zap.Error(err), zap.Int64("user_id", ev.UserID))
		o.sendText(ev.ChatID, localized(msgApology, lang))
		return "", false
	}
	return recognized, true
}

// completeRegistration writes every payload field to the user profile and
// rolls straight into a survey thread (transition 2 tail).
func (o *Orchestrator) completeRegistration(ctx context.Context, ev Event, sess *session.Session, fields payload.Fields) {
	for field, value := range fields {
		if field == "userid" || field == "text" {
			continue
		}
		if err := o.storage.UpdateUserField(ctx, ev.UserID, field, value); err != nil {
			// One bad field must not stop the rest.
			o.logger.Error("Failed to update user field",
				zap.Error(err),
				zap.Int64("user_id", ev.UserID),
				zap.String("field", field))
		}
	}

	o.logger.Info("Registration completed, switching to survey", zap.Int64("user_id", ev.UserID))
	o.openPhase(ctx, ev.UserID, ev.ChatID, sess.Lang(), session.PersonaSurvey, time.Time{})
}

// completeSurvey reconciles the payload into the entry for the selected
// day and resets the session to idle (transition 3 tail).
func (o *Orchestrator) completeSurvey(ctx context.Context, ev Event, sess *session.Session, fields payload.Fields) {
	day := sess.TargetDate(o.now())
	if err := o.reconcileSurvey(ctx, ev.UserID, fields, day); err != nil {
		o.logger.Error("Failed to reconcile survey",
			zap.Error(err),
			zap.Int64("user_id", ev.UserID),
			zap.Time("day", day))
	}

	if err := o.sessions.Put(ctx, ev.UserID, session.Idle(sess.Lang())); err != nil {
		o.logger.Error("Failed to reset session", zap.Error(err), zap.Int64("user_id", ev.UserID))
	}
}

// SetReminder updates the stored reminder time and replaces the trigger.
func (o *Orchestrator) SetReminder(ctx context.Context, userID int64, at models.TimeOfDay) error {
	if err := o.storage.UpdateUserField(ctx, userID, "reminder_time", at); err != nil {
		return err
	}
	return o.reminders.Schedule(userID, at)
}

// DisableReminder clears the stored time and cancels the trigger.
func (o *Orchestrator) DisableReminder(ctx context.Context, userID int64) error {
	if err := o.storage.UpdateUserField(ctx, userID, "reminder_time", nil); err != nil {
		return err
	}
	return o.reminders.Cancel(userID)
}

// SelectDate files the user's next survey under the given calendar day.
func (o *Orchestrator) SelectDate(ctx context.Context, userID, chatID int64, date time.Time) {
	o.BeginSurvey(ctx, userID, chatID, date)
}

func (o *Orchestrator) today() time.Time {
	return models.DateOnly(o.now())
}

func (o *Orchestrator) translateReply(ctx context.Context, reply string, lang models.Language) string {
	if lang == models.LanguageRussian {
		return reply
	}
	translated, err := o.translator.Translate(ctx, reply, models.LanguageRussian, lang)
	if err != nil {
		o.logger.Error("Failed to translate reply", zap.Error(err))
		return reply
	}
	return translated
}

// speak synthesizes the text and delivers it as a voice message with the
// text as caption, falling back to plain text when synthesis fails.
func (o *Orchestrator) speak(ctx context.Context, chatID int64, text string, lang models.Language) {
	audio, err := o.synth.Synthesize(ctx, text, lang)
	if err != nil {
		o.logger.Error("Failed to synthesize reply", zap.Error(err), zap.Int64("chat_id", chatID))
		o.sendText(chatID, text)
		return
	}
	if err := o.transport.SendVoice(chatID, audio, text); err != nil {
		o.logger.Error("Failed to send voice reply", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (o *Orchestrator) sendText(chatID int64, text string) {
	if err := o.transport.SendText(chatID, text); err != nil {
		o.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
