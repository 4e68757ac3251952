// Package payload locates and parses the machine-readable block an
// assistant reply uses to signal that a dialogue phase is complete.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

// Fields is a parsed payload object keyed by field name.
type Fields map[string]any

const (
	fenceOpen  = "```json"
	fenceClose = "```"
	jsonMarker = "json"
)

// Find scans message texts in the order the vendor returned them and
// picks the first one carrying the json marker.
func Find(messages []string) (string, bool) {
	for _, text := range messages {
		if strings.Contains(text, jsonMarker) {
			return text, true
		}
	}
	return "", false
}

// Strategy parses a candidate text into payload fields.
type Strategy func(text string) (Fields, bool)

// Strategies in priority order; Parse applies them first-success-wins.
// The free-text fallback always succeeds, so Parse never fails.
var Strategies = []Strategy{FencedJSON, LooseJSON, FreeText}

// Parse extracts a payload object from the text. Degraded inputs fall
// through to the free-text strategy instead of failing.
func Parse(text string) Fields {
	for _, strategy := range Strategies {
		if fields, ok := strategy(text); ok {
			return fields
		}
	}
	// unreachable: FreeText always succeeds
	return Fields{"text": text}
}

// FencedJSON parses the substring between a ```json fence and the nearest
// subsequent closing fence.
func FencedJSON(text string) (Fields, bool) {
	start := strings.Index(text, fenceOpen)
	if start == -1 {
		return nil, false
	}
	body := text[start+len(fenceOpen):]
	end := strings.Index(body, fenceClose)
	if end == -1 {
		return nil, false
	}
	return unmarshalObject(body[:end])
}

// LooseJSON locates the literal json token, then parses from the first
// "{" after it to the last "}" in the text.
func LooseJSON(text string) (Fields, bool) {
	marker := strings.Index(text, jsonMarker)
	if marker == -1 {
		return nil, false
	}
	rest := text[marker:]
	open := strings.Index(rest, "{")
	if open == -1 {
		return nil, false
	}
	end := strings.LastIndex(text, "}")
	abs := marker + open
	if end <= abs {
		return nil, false
	}
	return unmarshalObject(text[abs : end+1])
}

// FreeText wraps the cleaned reply under a single text field. This is the
// degraded path; it never fails.
func FreeText(text string) (Fields, bool) {
	return Fields{"text": clean(text)}, true
}

func unmarshalObject(s string) (Fields, bool) {
	var fields Fields
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func clean(text string) string {
	text = strings.ReplaceAll(text, fenceOpen, "")
	text = strings.ReplaceAll(text, "`", "")
	return strings.TrimSpace(text)
}

// Genitive month names as they appear in spoken-date replies.
var ruMonths = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

// ParseBirthDate tries the numeric day.month.year form first, then the
// spelled-out "1 февраля 2020" form.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t, nil
	}

	parts := strings.Fields(strings.ToLower(s))
	if len(parts) == 3 {
		day, dayErr := strconv.Atoi(parts[0])
		month, monthOK := ruMonths[parts[1]]
		year, yearErr := strconv.Atoi(parts[2])
		if dayErr == nil && monthOK && yearErr == nil {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: "02.01.2006", Value: s}
}

// Normalize coerces raw payload fields for persistence: empty strings
// become absent, birthdate and reminder_time get typed, unparsable values
// are dropped with a log line rather than aborting the payload.
func Normalize(fields Fields, logger *zap.Logger) Fields {
	out := make(Fields, len(fields))
	for key, value := range fields {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[key] = value
	}

	if raw, ok := out["birthdate"].(string); ok {
		if bd, err := ParseBirthDate(raw); err == nil {
			out["birthdate"] = bd
		} else {
			logger.Warn("Dropping unparsable birthdate", zap.String("value", raw))
			delete(out, "birthdate")
		}
	}

	if raw, ok := out["reminder_time"].(string); ok {
		if tod, err := models.ParseTimeOfDay(raw); err == nil {
			out["reminder_time"] = tod
		} else {
			logger.Warn("Dropping unparsable reminder_time", zap.String("value", raw))
			delete(out, "reminder_time")
		}
	}

	return out
}

// ReminderTime returns the normalized reminder time, if any.
func (f Fields) ReminderTime() (models.TimeOfDay, bool) {
	tod, ok := f["reminder_time"].(models.TimeOfDay)
	return tod, ok
}

// PainIntensity coerces the pain_intensity field to an integer, defaulting
// to zero when absent or malformed.
func (f Fields) PainIntensity() int {
	switch v := f["pain_intensity"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
