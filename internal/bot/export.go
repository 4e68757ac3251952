package bot

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/cephalgo/diary-bot/internal/models"
)

// buildStatisticsCSV renders the user's profile followed by every diary
// entry as a single CSV document for the download-statistics action.
func buildStatisticsCSV(user *models.User, surveys []*models.Survey) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	profileHeader := []string{
		"ID Пользователя", "Имя пользователя в Telegram", "Имя", "Фамилия", "ФИО",
		"Дата рождения", "Менструальный цикл", "Страна", "Город", "Медикаменты",
		"Постоянные медикаменты", "Название постоянных медикаментов",
		"Время напоминания", "Дата создания",
	}
	birthdate := ""
	if user.BirthDate != nil {
		birthdate = user.BirthDate.Format("2006-01-02")
	}
	reminder := ""
	if user.ReminderTime != nil {
		reminder = user.ReminderTime.String()
	}
	profile := []string{
		strconv.FormatInt(user.UserID, 10), user.Username, user.FirstName,
		user.LastName, user.FIO, birthdate, user.MenstrualCycle, user.Country,
		user.City, user.Medication, user.ConstMedication, user.ConstMedicationName,
		reminder, user.CreatedAt.Format("2006-01-02"),
	}
	if err := w.Write(profileHeader); err != nil {
		return nil, err
	}
	if err := w.Write(profile); err != nil {
		return nil, err
	}
	if err := w.Write(nil); err != nil {
		return nil, err
	}

	recordHeader := []string{
		"Номер", "Дата создания", "Дата обновления", "Головная боль сегодня",
		"Принимали ли медикаменты", "Интенсивность боли", "Область боли",
		"Детали области", "Тип боли", "Комментарии",
	}
	if err := w.Write(recordHeader); err != nil {
		return nil, err
	}
	for _, sv := range surveys {
		record := []string{
			strconv.FormatInt(sv.SurveyID, 10),
			sv.CreatedAt.Format("2006-01-02 15:04"),
			sv.UpdatedAt.Format("2006-01-02 15:04"),
			sv.HeadacheToday,
			sv.MedicamentToday,
			strconv.Itoa(sv.PainIntensity),
			sv.PainArea,
			sv.AreaDetail,
			sv.PainType,
			sv.Comments,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
