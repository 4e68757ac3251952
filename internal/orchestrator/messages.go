package orchestrator

import (
	"fmt"

	"github.com/cephalgo/diary-bot/internal/models"
)

// User-visible texts. Failures never surface raw vendor errors; everything
// maps to one of these localized messages.
var (
	msgRepeat = map[models.Language]string{
		models.LanguageRussian: "Пожалуйста, повторите ваш ответ еще раз",
		models.LanguageKazakh:  "Жауабыңызды қайта қайталаңызшы.",
	}
	msgApology = map[models.Language]string{
		models.LanguageRussian: "Произошла ошибка при обработке вопроса. Пожалуйста, попробуйте снова.",
		models.LanguageKazakh:  "Сұрақты өңдеу кезінде қате пайда болды. Қайталап көріңізші.",
	}
	msgFinishPhase = map[models.Language]string{
		models.LanguageRussian: "Пожалуйста, сначала завершите текущий опрос, ответив голосовым сообщением.",
		models.LanguageKazakh:  "Алдымен ағымдағы сауалнаманы дауыстық хабарламамен аяқтаңызшы.",
	}
	msgChooseLanguage = map[models.Language]string{
		models.LanguageRussian: "Пожалуйста, сначала зарегистрируйтесь, выбрав язык. Вы можете это сделать нажав /start \nв меню ↙️",
		models.LanguageKazakh:  "Алдымен тілді таңдап тіркеліңізші. Ол үшін /start командасын басыңыз.",
	}
	msgVoiceOnly = map[models.Language]string{
		models.LanguageRussian: "Я ваш голосовой помощник Цефалголог, вам необходимо ответить голосовым сообщением, либо нажмите команду /start для начала общения.",
		models.LanguageKazakh:  "Мен сіздің дауыс көмекшіңіз Цефалгологпын, сізге дауыс хабарламасымен жауап беру қажет, немесе сөйлесуді бастау үшін /start командасын басыңыз.",
	}
)

func ackMessage(lang models.Language, recognized string) string {
	if lang == models.LanguageKazakh {
		return fmt.Sprintf("Сіз '%s' дедіңіз, жауап күтіңіз...", recognized)
	}
	return fmt.Sprintf("Вы произнесли: '%s', ожидайте ответа...", recognized)
}

func localized(m map[models.Language]string, lang models.Language) string {
	if text, ok := m[lang]; ok {
		return text
	}
	return m[models.LanguageRussian]
}

// greetingUtterance opens every new assistant thread.
const greetingUtterance = "Здравствуйте"
