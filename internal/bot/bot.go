// Package bot is the Telegram surface: it receives updates, renders the
// button-driven menus and hands dialogue turns to the orchestrator.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
	"github.com/cephalgo/diary-bot/internal/orchestrator"
	"github.com/cephalgo/diary-bot/internal/session"
	"github.com/cephalgo/diary-bot/internal/storage"
)

const (
	cbSetLangRu           = "set_lang_ru"
	cbSetLangKk           = "set_lang_kk"
	cbRecordForToday      = "record_for_today"
	cbDownloadStatistics  = "download_statistics"
	cbReminderSettings    = "reminder_settings"
	cbSetReminderTime     = "set_reminder_time"
	cbDisableReminder     = "disable_reminder"
	actionSetReminderTime = "set_reminder_time"
)

// throttleEntry counts one user's updates inside the current rate window.
type throttleEntry struct {
	windowStart time.Time
	rate        int
	warned      bool
}

type Bot struct {
	api      *tgbotapi.BotAPI
	storage  storage.Storage
	sessions session.Store
	orch     *orchestrator.Orchestrator
	logger   *zap.Logger
	client   *http.Client

	throttlePeriod  time.Duration
	throttleMaxRate int
	now             func() time.Time

	mu        sync.Mutex
	pending   map[int64]string
	throttled map[int64]*throttleEntry
}

func New(token string, throttlePeriod time.Duration, throttleMaxRate int, store storage.Storage, sessions session.Store, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("Authorized on telegram", zap.String("username", api.Self.UserName))

	return &Bot{
		api:             api,
		storage:         store,
		sessions:        sessions,
		logger:          logger,
		client:          &http.Client{Timeout: 30 * time.Second},
		throttlePeriod:  throttlePeriod,
		throttleMaxRate: throttleMaxRate,
		now:             time.Now,
		pending:         make(map[int64]string),
		throttled:       make(map[int64]*throttleEntry),
	}, nil
}

// SetOrchestrator wires the dialogue engine. Set once before Start; split
// from New because the orchestrator's transport is this bot.
func (b *Bot) SetOrchestrator(orch *orchestrator.Orchestrator) {
	b.orch = orch
}

// Start blocks on the long-poll update loop. Each update runs in its own
// goroutine; a panic inside one turn must not take the loop down.
func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info("Started receiving updates")

	for update := range updates {
		update := update
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Recovered from panic in update handler", zap.Any("panic", r))
					if chatID := updateChatID(update); chatID != 0 {
						b.reply(chatID, text(textGenericError, b.userLanguage(ctx, chatID)))
					}
				}
			}()
			b.handleUpdate(ctx, update)
		}()
	}
}

func updateChatID(update tgbotapi.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func updateUserID(update tgbotapi.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if userID := updateUserID(update); userID != 0 {
		allowed, warn := b.allowUpdate(userID)
		if !allowed {
			if warn {
				b.reply(userID, text(textThrottled, b.userLanguage(ctx, userID)))
			}
			return
		}
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// allowUpdate applies the per-user rate limit. Inside one window the user
// gets throttleMaxRate updates; the first rejected one also carries a
// warning. A user's stale window is reset on their next update.
func (b *Bot) allowUpdate(userID int64) (allowed, warn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry := b.throttled[userID]
	if entry == nil || now.Sub(entry.windowStart) >= b.throttlePeriod {
		entry = &throttleEntry{windowStart: now}
		b.throttled[userID] = entry
	}

	if entry.rate >= b.throttleMaxRate {
		warned := entry.warned
		entry.warned = true
		return false, !warned
	}
	entry.rate++
	return true, false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Text != "" && b.takePending(msg.From.ID) == actionSetReminderTime {
		b.handleReminderTimeInput(ctx, msg)
		return
	}

	ev := orchestrator.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	switch {
	case msg.Voice != nil:
		ev.Kind = orchestrator.EventVoice
		ev.VoiceFileID = msg.Voice.FileID
	case msg.Text != "":
		ev.Kind = orchestrator.EventText
		ev.Text = msg.Text
	default:
		return
	}
	b.orch.HandleTurn(ctx, ev)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	ev := orchestrator.Event{
		Kind:      orchestrator.EventText,
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Text:      msg.Text,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, ev)
	case "headache", "calendar":
		if b.orch.GuardMenu(ctx, ev) {
			b.sendCalendar(ctx, ev.UserID, ev.ChatID)
		}
	case "statistics":
		if b.orch.GuardMenu(ctx, ev) {
			b.sendStatisticsMenu(ctx, ev.UserID, ev.ChatID)
		}
	case "settings":
		if b.orch.GuardMenu(ctx, ev) {
			b.sendSettingsMenu(ctx, ev.UserID, ev.ChatID)
		}
	default:
		b.orch.HandleTurn(ctx, ev)
	}
}

// handleStart offers the language keyboard, except mid-dialogue where the
// menu guard keeps the conversation in charge.
func (b *Bot) handleStart(ctx context.Context, ev orchestrator.Event) {
	sess, err := b.sessions.Get(ctx, ev.UserID)
	if err == nil && sess != nil &&
		(sess.Phase == session.PhaseRegistration || sess.Phase == session.PhaseSurvey) {
		b.orch.GuardMenu(ctx, ev)
		return
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Русский 🇷🇺", cbSetLangRu),
			tgbotapi.NewInlineKeyboardButtonData("Қазақша 🇰🇿", cbSetLangKk),
		),
	)
	out := tgbotapi.NewMessage(ev.ChatID, textChooseLanguage)
	out.ReplyMarkup = markup
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
	if cq.Message == nil {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	ev := orchestrator.Event{
		UserID:    userID,
		ChatID:    chatID,
		Username:  cq.From.UserName,
		FirstName: cq.From.FirstName,
		LastName:  cq.From.LastName,
	}
	data := cq.Data

	switch {
	case data == cbIgnore:
		return
	case data == cbSetLangRu:
		b.reply(chatID, text(textLanguageChosen, models.LanguageRussian))
		b.orch.SetLanguage(ctx, ev, models.LanguageRussian)
	case data == cbSetLangKk:
		b.reply(chatID, text(textLanguageChosen, models.LanguageKazakh))
		b.orch.SetLanguage(ctx, ev, models.LanguageKazakh)
	case data == cbRecordForToday:
		b.orch.BeginSurvey(ctx, userID, chatID, time.Now())
	case strings.HasPrefix(data, cbDate):
		date, err := time.Parse("2006-01-02", strings.TrimPrefix(data, cbDate))
		if err != nil {
			b.logger.Warn("Bad calendar callback data", zap.String("data", data))
			return
		}
		b.orch.SelectDate(ctx, userID, chatID, date)
	case data == cbPrevMonth:
		b.shiftCalendar(ctx, userID, cq.Message, -1)
	case data == cbNextMonth:
		b.shiftCalendar(ctx, userID, cq.Message, 1)
	case data == cbDownloadStatistics:
		b.sendStatisticsFile(ctx, userID, chatID)
	case data == cbReminderSettings:
		b.sendReminderMenu(ctx, userID, chatID)
	case data == cbSetReminderTime:
		b.setPending(userID, actionSetReminderTime)
		b.reply(chatID, text(textAskReminderTime, b.userLanguage(ctx, userID)))
	case data == cbDisableReminder:
		lang := b.userLanguage(ctx, userID)
		if err := b.orch.DisableReminder(ctx, userID); err != nil {
			b.logger.Error("Failed to disable reminder", zap.Error(err), zap.Int64("user_id", userID))
			b.reply(chatID, text(textGenericError, lang))
			return
		}
		b.reply(chatID, text(textReminderDisabled, lang))
	default:
		b.logger.Warn("Unknown callback data", zap.String("data", data))
	}
}

func (b *Bot) handleReminderTimeInput(ctx context.Context, msg *tgbotapi.Message) {
	lang := b.userLanguage(ctx, msg.From.ID)

	at, err := models.ParseTimeOfDay(strings.TrimSpace(msg.Text))
	if err != nil {
		b.setPending(msg.From.ID, actionSetReminderTime)
		b.reply(msg.Chat.ID, text(textBadReminderTime, lang))
		return
	}
	if err := b.orch.SetReminder(ctx, msg.From.ID, at); err != nil {
		b.logger.Error("Failed to set reminder", zap.Error(err), zap.Int64("user_id", msg.From.ID))
		b.reply(msg.Chat.ID, text(textGenericError, lang))
		return
	}
	b.reply(msg.Chat.ID, text(textReminderSet, lang))
}

// sendCalendar shows the current month with a record-for-today shortcut
// and remembers the displayed month in the session for paging.
func (b *Bot) sendCalendar(ctx context.Context, userID, chatID int64) {
	lang := b.userLanguage(ctx, userID)
	now := time.Now()

	b.storeCalendarCursor(ctx, userID, now.Year(), now.Month())

	markup, err := b.calendarFor(ctx, userID, now.Year(), now.Month(), lang)
	if err != nil {
		b.logger.Error("Failed to build calendar", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, text(textGenericError, lang))
		return
	}
	out := tgbotapi.NewMessage(chatID, text(textCalendarCaption, lang))
	out.ReplyMarkup = markup
	b.send(out)
}

func (b *Bot) calendarFor(ctx context.Context, userID int64, year int, month time.Month, lang models.Language) (tgbotapi.InlineKeyboardMarkup, error) {
	surveys, err := b.storage.ListSurveys(ctx, userID)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	markup := calendarMarkup(year, month, calendarMarks(surveys, year, month))
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text(btnRecordForToday, lang), cbRecordForToday),
		),
	)
	return markup, nil
}

func (b *Bot) shiftCalendar(ctx context.Context, userID int64, msg *tgbotapi.Message, months int) {
	lang := b.userLanguage(ctx, userID)

	year, month := time.Now().Year(), time.Now().Month()
	if sess, err := b.sessions.Get(ctx, userID); err == nil && sess != nil && sess.CalendarYear != 0 {
		year, month = sess.CalendarYear, time.Month(sess.CalendarMonth)
	}
	shifted := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	b.storeCalendarCursor(ctx, userID, shifted.Year(), shifted.Month())

	markup, err := b.calendarFor(ctx, userID, shifted.Year(), shifted.Month(), lang)
	if err != nil {
		b.logger.Error("Failed to rebuild calendar", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, markup)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to page calendar", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func (b *Bot) storeCalendarCursor(ctx context.Context, userID int64, year int, month time.Month) {
	sess, err := b.sessions.Get(ctx, userID)
	if err != nil || sess == nil {
		return
	}
	sess.CalendarYear = year
	sess.CalendarMonth = int(month)
	if err := b.sessions.Put(ctx, userID, sess); err != nil {
		b.logger.Warn("Failed to store calendar cursor", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func statisticsMarkup(lang models.Language) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text(btnDownloadStatistics, lang), cbDownloadStatistics),
		),
	)
}

func (b *Bot) sendStatisticsMenu(ctx context.Context, userID, chatID int64) {
	lang := b.userLanguage(ctx, userID)
	out := tgbotapi.NewMessage(chatID, text(textStatisticsCaption, lang))
	out.ReplyMarkup = statisticsMarkup(lang)
	b.send(out)
}

func (b *Bot) sendStatisticsFile(ctx context.Context, userID, chatID int64) {
	lang := b.userLanguage(ctx, userID)

	user, err := b.storage.GetUser(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load user for statistics", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, text(textStatisticsError, lang))
		return
	}
	surveys, err := b.storage.ListSurveys(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load surveys for statistics", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, text(textStatisticsError, lang))
		return
	}
	if len(surveys) == 0 {
		b.reply(chatID, text(textNoRecords, lang))
		return
	}

	data, err := buildStatisticsCSV(user, surveys)
	if err != nil {
		b.logger.Error("Failed to build statistics file", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, text(textStatisticsError, lang))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("headache_diary_%d.csv", userID),
		Bytes: data,
	})
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("Failed to send statistics file", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, text(textStatisticsError, lang))
	}
}

func settingsMarkup(lang models.Language) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text(btnReminderSettings, lang), cbReminderSettings),
		),
	)
}

func reminderMarkup(lang models.Language) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text(btnSetReminderTime, lang), cbSetReminderTime),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text(btnDisableReminder, lang), cbDisableReminder),
		),
	)
}

// sendSettingsMenu is the /settings surface; the reminder actions live one
// level down behind the reminders button.
func (b *Bot) sendSettingsMenu(ctx context.Context, userID, chatID int64) {
	lang := b.userLanguage(ctx, userID)
	out := tgbotapi.NewMessage(chatID, text(textSettings, lang))
	out.ReplyMarkup = settingsMarkup(lang)
	b.send(out)
}

func (b *Bot) sendReminderMenu(ctx context.Context, userID, chatID int64) {
	lang := b.userLanguage(ctx, userID)
	out := tgbotapi.NewMessage(chatID, text(textReminderMenu, lang))
	out.ReplyMarkup = reminderMarkup(lang)
	b.send(out)
}

// SendText implements orchestrator.Transport.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendVoice implements orchestrator.Transport. The api only takes voice
// payloads from disk, so the clip goes through a uniquely named temp file.
func (b *Bot) SendVoice(chatID int64, audio []byte, caption string) error {
	path := filepath.Join(os.TempDir(), uuid.NewString()+".mp3")
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return fmt.Errorf("failed to write voice temp file: %w", err)
	}
	defer os.Remove(path)

	voice := tgbotapi.NewVoice(chatID, tgbotapi.FilePath(path))
	voice.Caption = caption
	if _, err := b.api.Send(voice); err != nil {
		return fmt.Errorf("failed to send voice: %w", err)
	}
	return nil
}

// DownloadFile implements orchestrator.Transport.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// userLanguage resolves the display language outside a dialogue turn.
func (b *Bot) userLanguage(ctx context.Context, userID int64) models.Language {
	if sess, err := b.sessions.Get(ctx, userID); err == nil && sess != nil && sess.Language != "" {
		return sess.Language
	}
	if user, err := b.storage.GetUser(ctx, userID); err == nil && user.Language != "" {
		return user.Language
	}
	return models.LanguageRussian
}

func (b *Bot) setPending(userID int64, action string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = action
}

// takePending pops and returns the user's pending menu action, if any.
func (b *Bot) takePending(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	action := b.pending[userID]
	delete(b.pending, userID)
	return action
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}
