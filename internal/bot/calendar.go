package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cephalgo/diary-bot/internal/models"
)

// Day marks: headache day with medication vs without.
const (
	markHeadacheWithMeds = "🔺"
	markHeadache         = "🔸"
)

var weekdayHeader = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

const (
	cbIgnore    = "ignore"
	cbPrevMonth = "prev_month"
	cbNextMonth = "next_month"
	cbDate      = "date_" // date_YYYY-MM-DD
)

// calendarMarks maps YYYY-MM-DD of the displayed month to a day mark.
func calendarMarks(surveys []*models.Survey, year int, month time.Month) map[string]string {
	marks := make(map[string]string)
	for _, sv := range surveys {
		if sv.CreatedAt.Year() != year || sv.CreatedAt.Month() != month {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(sv.HeadacheToday), "да") {
			continue
		}
		key := sv.CreatedAt.Format("2006-01-02")
		if strings.TrimSpace(sv.MedicamentToday) != "" {
			marks[key] = markHeadacheWithMeds
		} else {
			marks[key] = markHeadache
		}
	}
	return marks
}

// calendarMarkup renders one month as an inline keyboard: weekday header,
// day grid with marks, month navigation row.
func calendarMarkup(year int, month time.Month, marks map[string]string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	header := make([]tgbotapi.InlineKeyboardButton, 0, len(weekdayHeader))
	for _, day := range weekdayHeader {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(day, cbIgnore))
	}
	rows = append(rows, header)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	// Monday-first column offset for the 1st.
	offset := (int(first.Weekday()) + 6) % 7

	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, tgbotapi.NewInlineKeyboardButtonData(" ", cbIgnore))
	}
	for day := 1; day <= daysInMonth; day++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		label := fmt.Sprintf("%d", day)
		if mark, ok := marks[date]; ok {
			label += " " + mark
		}
		week = append(week, tgbotapi.NewInlineKeyboardButtonData(label, cbDate+date))
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, tgbotapi.NewInlineKeyboardButtonData(" ", cbIgnore))
		}
		rows = append(rows, week)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("<", cbPrevMonth),
		tgbotapi.NewInlineKeyboardButtonData(">", cbNextMonth),
	})

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
