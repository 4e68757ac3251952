package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
	"github.com/cephalgo/diary-bot/internal/storage"
)

type fakeNotifier struct {
	sent []struct {
		chatID int64
		text   string
	}
}

func (f *fakeNotifier) SendText(chatID int64, text string) error {
	f.sent = append(f.sent, struct {
		chatID int64
		text   string
	}{chatID, text})
	return nil
}

type firedCall struct {
	userID int64
	chatID int64
	date   time.Time
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.MemoryStorage, *fakeNotifier) {
	t.Helper()
	store := storage.NewMemoryStorage()
	notifier := &fakeNotifier{}
	s, err := New(store, notifier, time.UTC, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, store, notifier
}

func addUser(t *testing.T, store *storage.MemoryStorage, userID int64, lang models.Language, reminder *models.TimeOfDay) {
	t.Helper()
	err := store.CreateUser(context.Background(), &models.User{
		UserID: userID, Language: lang, ReminderTime: reminder,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScheduleReplacesExistingTrigger(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	if err := s.Schedule(1, models.TimeOfDay{Hour: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.Schedule(1, models.TimeOfDay{Hour: 18, Minute: 30}); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(s.jobs))
	}
	if s.jobs[1].at != (models.TimeOfDay{Hour: 18, Minute: 30}) {
		t.Errorf("job at = %v", s.jobs[1].at)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	if err := s.Cancel(1); err != nil {
		t.Errorf("cancel without a trigger: %v", err)
	}

	if err := s.Schedule(1, models.TimeOfDay{Hour: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel(1); err != nil {
		t.Errorf("second cancel: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) != 0 {
		t.Errorf("jobs left: %d", len(s.jobs))
	}
}

func TestFireAnnouncesAndStartsSurvey(t *testing.T) {
	s, store, notifier := newTestScheduler(t)
	at := models.TimeOfDay{Hour: 9}
	addUser(t, store, 1, models.LanguageKazakh, &at)

	now := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	var fired []firedCall
	s.SetOnFire(func(ctx context.Context, userID, chatID int64, date time.Time) {
		fired = append(fired, firedCall{userID, chatID, date})
	})

	s.fire(1, at)

	if len(notifier.sent) != 1 {
		t.Fatalf("got %d announcements", len(notifier.sent))
	}
	if notifier.sent[0].chatID != 1 {
		t.Errorf("announcement chat = %d", notifier.sent[0].chatID)
	}
	if notifier.sent[0].text != announceText[models.LanguageKazakh] {
		t.Errorf("announcement = %q", notifier.sent[0].text)
	}

	if len(fired) != 1 {
		t.Fatalf("got %d survey starts", len(fired))
	}
	if fired[0].userID != 1 || fired[0].chatID != 1 {
		t.Errorf("fired = %+v", fired[0])
	}
	if !fired[0].date.Equal(models.DateOnly(now)) {
		t.Errorf("date = %v", fired[0].date)
	}
}

func TestFireSkipsStaleTrigger(t *testing.T) {
	s, store, notifier := newTestScheduler(t)
	current := models.TimeOfDay{Hour: 18}
	addUser(t, store, 1, models.LanguageRussian, &current)

	var fired []firedCall
	s.SetOnFire(func(ctx context.Context, userID, chatID int64, date time.Time) {
		fired = append(fired, firedCall{userID, chatID, date})
	})

	// trigger created for the old time, user has since moved it
	s.fire(1, models.TimeOfDay{Hour: 9})

	if len(notifier.sent) != 0 {
		t.Errorf("stale trigger announced: %+v", notifier.sent)
	}
	if len(fired) != 0 {
		t.Error("stale trigger started a survey")
	}
}

func TestFireSkipsDisabledReminder(t *testing.T) {
	s, store, notifier := newTestScheduler(t)
	addUser(t, store, 1, models.LanguageRussian, nil)

	s.SetOnFire(func(ctx context.Context, userID, chatID int64, date time.Time) {
		t.Error("disabled reminder started a survey")
	})

	s.fire(1, models.TimeOfDay{Hour: 9})

	if len(notifier.sent) != 0 {
		t.Errorf("disabled reminder announced: %+v", notifier.sent)
	}
}

func TestFireSkipsUnknownUser(t *testing.T) {
	s, _, notifier := newTestScheduler(t)

	s.SetOnFire(func(ctx context.Context, userID, chatID int64, date time.Time) {
		t.Error("unknown user started a survey")
	})

	s.fire(404, models.TimeOfDay{Hour: 9})

	if len(notifier.sent) != 0 {
		t.Errorf("unknown user announced: %+v", notifier.sent)
	}
}

func TestRestoreReregistersStoredReminders(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	morning := models.TimeOfDay{Hour: 8, Minute: 30}
	addUser(t, store, 1, models.LanguageRussian, &morning)
	addUser(t, store, 2, models.LanguageRussian, nil)

	if err := s.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) != 1 {
		t.Fatalf("restored %d jobs, want 1", len(s.jobs))
	}
	if _, ok := s.jobs[1]; !ok {
		t.Error("user 1 trigger missing")
	}
}
