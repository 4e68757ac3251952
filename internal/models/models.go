package models

import (
	"fmt"
	"time"
)

// Language is the user's preferred conversation language.
type Language string

const (
	LanguageRussian Language = "ru"
	LanguageKazakh  Language = "kk"
)

// User represents a registered diary user. Fields beyond the Telegram
// identity are filled incrementally by the registration conversation.
type User struct {
	UserID              int64      `json:"userid"`
	Username            string     `json:"username"`
	FirstName           string     `json:"firstname"`
	LastName            string     `json:"lastname"`
	FIO                 string     `json:"fio"`
	BirthDate           *time.Time `json:"birthdate,omitempty"`
	MenstrualCycle      string     `json:"menstrual_cycle"`
	Country             string     `json:"country"`
	City                string     `json:"city"`
	Medication          string     `json:"medication"`
	ConstMedication     string     `json:"const_medication"`
	ConstMedicationName string     `json:"const_medication_name"`
	// ReminderTime is nil when daily reminders are disabled.
	ReminderTime *TimeOfDay `json:"reminder_time,omitempty"`
	Language     Language   `json:"language"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Survey is one diary entry. CreatedAt carries the logical day the entry
// belongs to (it may be backdated), UpdatedAt the real time of last write.
// At most one logical entry per (user, day) is intended.
type Survey struct {
	SurveyID        int64     `json:"survey_id"`
	UserID          int64     `json:"userid"`
	HeadacheToday   string    `json:"headache_today"`
	MedicamentToday string    `json:"medicament_today"`
	PainIntensity   int       `json:"pain_intensity"`
	PainArea        string    `json:"pain_area"`
	AreaDetail      string    `json:"area_detail"`
	PainType        string    `json:"pain_type"`
	Comments        string    `json:"comments"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Day returns the logical calendar day of the entry.
func (s *Survey) Day() time.Time {
	return DateOnly(s.CreatedAt)
}

// TimeOfDay is a wall-clock trigger time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DateOnly truncates t to its calendar date, keeping the location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// CombineDayAndClock builds a timestamp with the calendar date of day and
// the wall-clock time of clock.
func CombineDayAndClock(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
}
