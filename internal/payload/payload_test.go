package payload

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

func TestFindPicksFirstMessageWithMarker(t *testing.T) {
	messages := []string{
		"Спасибо за ваши ответы!",
		"```json\n{\"headache_today\": \"да\"}\n```",
		"json {\"older\": true}",
	}
	text, ok := Find(messages)
	if !ok {
		t.Fatal("expected a payload candidate")
	}
	if text != messages[1] {
		t.Errorf("picked %q, want the first marker-bearing message", text)
	}
}

func TestFindNoMarker(t *testing.T) {
	if _, ok := Find([]string{"Как вы себя чувствуете?", "Хорошо"}); ok {
		t.Error("expected no candidate in marker-free messages")
	}
}

func TestParseFencedJSON(t *testing.T) {
	text := "Готово!\n```json\n{\"fio\": \"Иванова Анна\", \"pain_intensity\": 7}\n```\nДо встречи."
	fields := Parse(text)
	if fields["fio"] != "Иванова Анна" {
		t.Errorf("fio = %v", fields["fio"])
	}
	if got := fields.PainIntensity(); got != 7 {
		t.Errorf("PainIntensity() = %d, want 7", got)
	}
}

func TestParseLooseJSON(t *testing.T) {
	text := `Вот итог в формате json: {"headache_today": "нет", "comments": "все хорошо"}`
	fields := Parse(text)
	if fields["headache_today"] != "нет" {
		t.Errorf("headache_today = %v", fields["headache_today"])
	}
}

func TestParseFreeTextFallback(t *testing.T) {
	text := "```json\nэто не объект\n"
	fields := Parse(text)
	freeText, ok := fields["text"].(string)
	if !ok {
		t.Fatalf("expected free-text fallback, got %v", fields)
	}
	if freeText != "это не объект" {
		t.Errorf("text = %q", freeText)
	}
}

func TestParseBirthDateNumeric(t *testing.T) {
	got, err := ParseBirthDate("01.02.2020")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseBirthDateSpelled(t *testing.T) {
	got, err := ParseBirthDate("1 февраля 2020")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseBirthDateBothFormsAgree(t *testing.T) {
	numeric, err := ParseBirthDate("01.02.2020")
	if err != nil {
		t.Fatal(err)
	}
	spelled, err := ParseBirthDate("1 февраля 2020")
	if err != nil {
		t.Fatal(err)
	}
	if !numeric.Equal(spelled) {
		t.Errorf("numeric %v != spelled %v", numeric, spelled)
	}
}

func TestParseBirthDateRejectsGarbage(t *testing.T) {
	if _, err := ParseBirthDate("когда-то давно"); err == nil {
		t.Error("expected an error")
	}
}

func TestNormalizeDropsEmptyAndTypes(t *testing.T) {
	logger := zap.NewNop()
	fields := Normalize(Fields{
		"fio":           "Иванова Анна",
		"comments":      "   ",
		"birthdate":     "01.02.2020",
		"reminder_time": "09:00",
	}, logger)

	if _, ok := fields["comments"]; ok {
		t.Error("blank comments should be dropped")
	}
	if _, ok := fields["birthdate"].(time.Time); !ok {
		t.Errorf("birthdate not typed: %T", fields["birthdate"])
	}
	tod, ok := fields.ReminderTime()
	if !ok {
		t.Fatal("reminder_time not typed")
	}
	if tod != (models.TimeOfDay{Hour: 9, Minute: 0}) {
		t.Errorf("reminder_time = %v", tod)
	}
}

func TestNormalizeDropsUnparsableValues(t *testing.T) {
	logger := zap.NewNop()
	fields := Normalize(Fields{
		"birthdate":     "весной",
		"reminder_time": "рано утром",
		"fio":           "Иванова Анна",
	}, logger)

	if _, ok := fields["birthdate"]; ok {
		t.Error("unparsable birthdate should be dropped")
	}
	if _, ok := fields["reminder_time"]; ok {
		t.Error("unparsable reminder_time should be dropped")
	}
	if fields["fio"] != "Иванова Анна" {
		t.Error("sibling fields must survive a dropped value")
	}
}

func TestPainIntensityCoercion(t *testing.T) {
	cases := []struct {
		name string
		in   Fields
		want int
	}{
		{"float", Fields{"pain_intensity": float64(7)}, 7},
		{"string", Fields{"pain_intensity": "5"}, 5},
		{"absent", Fields{}, 0},
		{"garbage", Fields{"pain_intensity": "сильно"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.PainIntensity(); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}
