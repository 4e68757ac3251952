package session

import (
	"time"

	"github.com/cephalgo/diary-bot/internal/models"
)

// Phase is the orchestrator's discrete dialogue state for a user.
type Phase string

const (
	// PhaseAwaitingLanguage: the user must pick a language before anything else.
	PhaseAwaitingLanguage Phase = "awaiting_language"
	// PhaseRegistration: registration persona engaged, thread open.
	PhaseRegistration Phase = "registration_in_progress"
	// PhaseSurvey: survey persona engaged, thread open.
	PhaseSurvey Phase = "survey_in_progress"
	// PhaseIdle: between turns, no open thread.
	PhaseIdle Phase = "idle"
)

// Persona identifies which assistant configuration drives the conversation.
type Persona string

const (
	PersonaRegistration Persona = "registration"
	PersonaSurvey       Persona = "survey"
)

// Session is the per-user ephemeral conversation state. It may be lost on
// restart without correctness loss beyond forcing re-registration detection.
// ThreadID and Persona are only populated in the two in-progress phases;
// the constructors below keep that invariant.
type Session struct {
	Phase    Phase           `json:"phase"`
	Language models.Language `json:"language"`
	ThreadID string          `json:"thread_id,omitempty"`
	Persona  Persona         `json:"persona,omitempty"`
	// SelectedDate is the calendar day the next survey answer is filed
	// under. Zero means today.
	SelectedDate  time.Time `json:"selected_date,omitempty"`
	CalendarYear  int       `json:"calendar_year,omitempty"`
	CalendarMonth int       `json:"calendar_month,omitempty"`
	LastVoiceID   string    `json:"last_voice_id,omitempty"`
}

func AwaitingLanguage() *Session {
	return &Session{Phase: PhaseAwaitingLanguage}
}

func Idle(lang models.Language) *Session {
	return &Session{Phase: PhaseIdle, Language: lang}
}

// InProgress opens a dialogue phase with an active thread. The phase is
// derived from the persona so the two can never disagree.
func InProgress(lang models.Language, persona Persona, threadID string) *Session {
	phase := PhaseRegistration
	if persona == PersonaSurvey {
		phase = PhaseSurvey
	}
	return &Session{
		Phase:    phase,
		Language: lang,
		Persona:  persona,
		ThreadID: threadID,
	}
}

// TargetDate resolves the day the next survey payload is filed under.
func (s *Session) TargetDate(now time.Time) time.Time {
	if s.SelectedDate.IsZero() {
		return models.DateOnly(now)
	}
	return models.DateOnly(s.SelectedDate)
}

// Lang returns the session language, defaulting to Russian.
func (s *Session) Lang() models.Language {
	if s == nil || s.Language == "" {
		return models.LanguageRussian
	}
	return s.Language
}
