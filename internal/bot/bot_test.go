package bot

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/cephalgo/diary-bot/internal/models"
)

func newThrottleBot(period time.Duration, maxRate int) (*Bot, *time.Time) {
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	b := &Bot{
		throttlePeriod:  period,
		throttleMaxRate: maxRate,
		pending:         make(map[int64]string),
		throttled:       make(map[int64]*throttleEntry),
	}
	b.now = func() time.Time { return now }
	return b, &now
}

func TestAllowUpdateThrottlesWithSingleWarning(t *testing.T) {
	b, now := newThrottleBot(10*time.Second, 3)

	for i := 0; i < 3; i++ {
		allowed, warn := b.allowUpdate(1)
		if !allowed || warn {
			t.Fatalf("update %d: allowed=%v warn=%v", i, allowed, warn)
		}
	}

	allowed, warn := b.allowUpdate(1)
	if allowed || !warn {
		t.Errorf("first rejection: allowed=%v warn=%v, want warning", allowed, warn)
	}
	allowed, warn = b.allowUpdate(1)
	if allowed || warn {
		t.Errorf("second rejection: allowed=%v warn=%v, want silence", allowed, warn)
	}

	// a fresh window clears both the counter and the warning flag
	*now = now.Add(11 * time.Second)
	allowed, warn = b.allowUpdate(1)
	if !allowed || warn {
		t.Errorf("after window reset: allowed=%v warn=%v", allowed, warn)
	}
}

func TestAllowUpdateIsPerUser(t *testing.T) {
	b, _ := newThrottleBot(10*time.Second, 1)

	if allowed, _ := b.allowUpdate(1); !allowed {
		t.Fatal("user 1 first update rejected")
	}
	if allowed, _ := b.allowUpdate(1); allowed {
		t.Error("user 1 over the limit was allowed")
	}
	if allowed, _ := b.allowUpdate(2); !allowed {
		t.Error("user 2 throttled by user 1's traffic")
	}
}

func TestSettingsMenuLeadsToReminderActions(t *testing.T) {
	settings := settingsMarkup(models.LanguageRussian)
	if len(settings.InlineKeyboard) != 1 || len(settings.InlineKeyboard[0]) != 1 {
		t.Fatalf("settings markup = %+v", settings.InlineKeyboard)
	}
	if *settings.InlineKeyboard[0][0].CallbackData != cbReminderSettings {
		t.Errorf("settings button = %q", *settings.InlineKeyboard[0][0].CallbackData)
	}

	reminder := reminderMarkup(models.LanguageRussian)
	if len(reminder.InlineKeyboard) != 2 {
		t.Fatalf("reminder markup = %+v", reminder.InlineKeyboard)
	}
	if *reminder.InlineKeyboard[0][0].CallbackData != cbSetReminderTime {
		t.Errorf("set-time button = %q", *reminder.InlineKeyboard[0][0].CallbackData)
	}
	if *reminder.InlineKeyboard[1][0].CallbackData != cbDisableReminder {
		t.Errorf("disable button = %q", *reminder.InlineKeyboard[1][0].CallbackData)
	}
}

func TestStatisticsMenuHasDownloadButton(t *testing.T) {
	markup := statisticsMarkup(models.LanguageKazakh)
	if len(markup.InlineKeyboard) != 1 {
		t.Fatalf("markup = %+v", markup.InlineKeyboard)
	}
	if *markup.InlineKeyboard[0][0].CallbackData != cbDownloadStatistics {
		t.Errorf("button = %q", *markup.InlineKeyboard[0][0].CallbackData)
	}
}

func survey(day time.Time, headache, meds string) *models.Survey {
	return &models.Survey{
		HeadacheToday:   headache,
		MedicamentToday: meds,
		CreatedAt:       day,
		UpdatedAt:       day,
	}
}

func TestCalendarMarks(t *testing.T) {
	march := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	surveys := []*models.Survey{
		survey(march, "да", "ибупрофен"),
		survey(march.AddDate(0, 0, 4), "да", ""),
		survey(march.AddDate(0, 0, 9), "нет", ""),
		survey(march.AddDate(0, 1, 0), "да", ""), // april, outside the view
	}

	marks := calendarMarks(surveys, 2024, time.March)

	if marks["2024-03-01"] != markHeadacheWithMeds {
		t.Errorf("day 1 = %q", marks["2024-03-01"])
	}
	if marks["2024-03-05"] != markHeadache {
		t.Errorf("day 5 = %q", marks["2024-03-05"])
	}
	if _, ok := marks["2024-03-10"]; ok {
		t.Error("headache-free day should carry no mark")
	}
	if len(marks) != 2 {
		t.Errorf("got %d marks", len(marks))
	}
}

func TestCalendarMarkupShape(t *testing.T) {
	markup := calendarMarkup(2024, time.March, map[string]string{"2024-03-05": markHeadache})

	rows := markup.InlineKeyboard
	// weekday header + 5 week rows (March 2024 starts on Friday) + nav row
	if len(rows) != 7 {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, row := range rows[:len(rows)-1] {
		if len(row) != 7 {
			t.Errorf("row %d has %d buttons", i, len(row))
		}
	}

	// 2024-03-01 is a Friday: header row, then the 1st in column 5
	first := rows[1][4]
	if first.Text != "1" || *first.CallbackData != "date_2024-03-01" {
		t.Errorf("first day button = %+v", first)
	}

	var marked bool
	for _, row := range rows {
		for _, btn := range row {
			if *btn.CallbackData == "date_2024-03-05" && strings.Contains(btn.Text, markHeadache) {
				marked = true
			}
		}
	}
	if !marked {
		t.Error("marked day missing its mark")
	}

	nav := rows[len(rows)-1]
	if *nav[0].CallbackData != cbPrevMonth || *nav[1].CallbackData != cbNextMonth {
		t.Errorf("nav row = %+v", nav)
	}
}

func TestBuildStatisticsCSV(t *testing.T) {
	bd := time.Date(1990, time.February, 1, 0, 0, 0, 0, time.UTC)
	reminder := models.TimeOfDay{Hour: 9}
	user := &models.User{
		UserID:       1,
		Username:     "anna",
		FIO:          "Иванова Анна",
		BirthDate:    &bd,
		ReminderTime: &reminder,
		CreatedAt:    time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	}
	surveys := []*models.Survey{
		{
			SurveyID:        1,
			HeadacheToday:   "да",
			MedicamentToday: "ибупрофен",
			PainIntensity:   7,
			PainArea:        "висок",
			CreatedAt:       time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC),
			UpdatedAt:       time.Date(2024, time.March, 5, 16, 0, 0, 0, time.UTC),
		},
	}

	data, err := buildStatisticsCSV(user, surveys)
	if err != nil {
		t.Fatal(err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// profile header, profile row, record header, one record
	if len(records) != 4 {
		t.Fatalf("got %d csv rows", len(records))
	}

	profile := records[1]
	if profile[0] != "1" || profile[4] != "Иванова Анна" {
		t.Errorf("profile row = %v", profile)
	}
	if profile[5] != "1990-02-01" || profile[12] != "09:00" {
		t.Errorf("profile row = %v", profile)
	}

	entry := records[3]
	if entry[3] != "да" || entry[4] != "ибупрофен" || entry[5] != "7" {
		t.Errorf("entry row = %v", entry)
	}
}
