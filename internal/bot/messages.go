package bot

import "github.com/cephalgo/diary-bot/internal/models"

// Menu and settings texts. Dialogue-turn texts live in the orchestrator;
// these cover the button-driven surfaces only.
var (
	textChooseLanguage = "Выберите язык / Тілді таңдаңыз:"

	textLanguageChosen = map[models.Language]string{
		models.LanguageRussian: "Вы выбрали русский язык.",
		models.LanguageKazakh:  "Сіз қазақ тілін таңдадыңыз.",
	}
	textCalendarCaption = map[models.Language]string{
		models.LanguageRussian: "Вы можете создать запись на сегодня или выбрать день в календаре:",
		models.LanguageKazakh:  "Бүгінге жазба жасай аласыз немесе күнтізбеден күнді таңдаңыз:",
	}
	textStatisticsCaption = map[models.Language]string{
		models.LanguageRussian: "Дневник и статистика\n\nВы можете скачать статистику файлом и отправить дневник врачу.",
		models.LanguageKazakh:  "Күнделік және статистика\n\nСтатистиканы файлмен жүктеп алып, күнделікті дәрігерге жібере аласыз.",
	}
	textNoRecords = map[models.Language]string{
		models.LanguageRussian: "К сожалению, у вас пока нет записей в дневнике.",
		models.LanguageKazakh:  "Өкінішке қарай, күнделікте әзірге жазбалар жоқ.",
	}
	textSettings = map[models.Language]string{
		models.LanguageRussian: "Здесь можно скорректировать время уведомлений, чтобы ежедневный опрос был точнее и комфортнее.",
		models.LanguageKazakh:  "Мұнда күнделікті сауалнама уақытын өзіңізге ыңғайлы етіп баптай аласыз.",
	}
	textAskReminderTime = map[models.Language]string{
		models.LanguageRussian: "Укажите время опроса в формате ЧЧ:ММ. Например 17:45 или 09:05",
		models.LanguageKazakh:  "Сауалнама уақытын СС:ММ форматында көрсетіңіз. Мысалы 17:45 немесе 09:05",
	}
	textBadReminderTime = map[models.Language]string{
		models.LanguageRussian: "Неверный формат времени. Пожалуйста, укажите время в формате ЧЧ:ММ.",
		models.LanguageKazakh:  "Уақыт форматы қате. СС:ММ форматында көрсетіңізші.",
	}
	textReminderSet = map[models.Language]string{
		models.LanguageRussian: "Время напоминания установлено.\nДо скорой встречи!",
		models.LanguageKazakh:  "Еске салу уақыты орнатылды.\nЖақында кездескенше!",
	}
	textReminderMenu = map[models.Language]string{
		models.LanguageRussian: "Настройки напоминаний",
		models.LanguageKazakh:  "Еске салу баптаулары",
	}
	textThrottled = map[models.Language]string{
		models.LanguageRussian: "Дождитесь ответа или повторите попытку",
		models.LanguageKazakh:  "Жауапты күтіңіз немесе қайталап көріңіз",
	}
	textReminderDisabled = map[models.Language]string{
		models.LanguageRussian: "Напоминание отключено.",
		models.LanguageKazakh:  "Еске салу өшірілді.",
	}
	textGenericError = map[models.Language]string{
		models.LanguageRussian: "Произошла ошибка. Пожалуйста, попробуйте снова.",
		models.LanguageKazakh:  "Қате пайда болды. Қайталап көріңізші.",
	}
	textStatisticsError = map[models.Language]string{
		models.LanguageRussian: "Произошла ошибка при попытке получить статистику.",
		models.LanguageKazakh:  "Статистиканы алу кезінде қате пайда болды.",
	}

	btnRecordForToday = map[models.Language]string{
		models.LanguageRussian: "Запись на сегодня",
		models.LanguageKazakh:  "Бүгінге жазба",
	}
	btnDownloadStatistics = map[models.Language]string{
		models.LanguageRussian: "Скачать статистику",
		models.LanguageKazakh:  "Статистиканы жүктеу",
	}
	btnReminderSettings = map[models.Language]string{
		models.LanguageRussian: "Напоминания",
		models.LanguageKazakh:  "Еске салулар",
	}
	btnSetReminderTime = map[models.Language]string{
		models.LanguageRussian: "Установить точное время опроса",
		models.LanguageKazakh:  "Сауалнама уақытын орнату",
	}
	btnDisableReminder = map[models.Language]string{
		models.LanguageRussian: "Отключить напоминания",
		models.LanguageKazakh:  "Еске салуларды өшіру",
	}
)

func text(m map[models.Language]string, lang models.Language) string {
	if t, ok := m[lang]; ok {
		return t
	}
	return m[models.LanguageRussian]
}
