// Package scheduler maintains one daily reminder trigger per user and
// re-enters the survey conversation when a trigger fires.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
	"github.com/cephalgo/diary-bot/internal/storage"
)

// SurveyStarter opens a survey dialogue on behalf of a user with no live
// inbound message. In private chats the chat id equals the user id.
type SurveyStarter func(ctx context.Context, userID, chatID int64, date time.Time)

// Notifier sends the short pre-survey announcement.
type Notifier interface {
	SendText(chatID int64, text string) error
}

var announceText = map[models.Language]string{
	models.LanguageRussian: "Пора пройти ежедневный опрос.\nОдну секундочку...",
	models.LanguageKazakh:  "Күнделікті сауалнамадан өту уақыты келді.\nБір секунд күте тұрыңыз...",
}

type job struct {
	id uuid.UUID
	at models.TimeOfDay
}

// Scheduler is the process-wide trigger table. Schedule and Cancel are
// atomic with respect to each other for the same user.
type Scheduler struct {
	sched    gocron.Scheduler
	storage  storage.Storage
	notifier Notifier
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	jobs   map[int64]job
	onFire SurveyStarter
}

func New(store storage.Storage, notifier Notifier, location *time.Location, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		sched:    sched,
		storage:  store,
		notifier: notifier,
		location: location,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(location) },
		jobs:     make(map[int64]job),
	}, nil
}

// SetOnFire wires the orchestrator entry point. Set once before Start;
// split from New because the orchestrator also depends on the scheduler.
func (s *Scheduler) SetOnFire(fn SurveyStarter) {
	s.onFire = fn
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// Schedule replaces any existing trigger for the user with a daily one at
// the given time of day in the reference timezone.
func (s *Scheduler) Schedule(userID int64, at models.TimeOfDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[userID]; ok {
		if err := s.sched.RemoveJob(existing.id); err != nil {
			s.logger.Warn("Failed to remove existing reminder job",
				zap.Error(err), zap.Int64("user_id", userID))
		}
		delete(s.jobs, userID)
	}

	newJob, err := s.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(at.Hour), uint(at.Minute), 0),
		)),
		gocron.NewTask(func() {
			s.fire(userID, at)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reminder for user %d: %w", userID, err)
	}

	s.jobs[userID] = job{id: newJob.ID(), at: at}
	s.logger.Info("Scheduled reminder",
		zap.Int64("user_id", userID),
		zap.String("at", at.String()))
	return nil
}

// Cancel removes the user's trigger. Cancelling a user without one is a
// valid no-op.
func (s *Scheduler) Cancel(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[userID]
	if !ok {
		return nil
	}
	if err := s.sched.RemoveJob(existing.id); err != nil {
		return fmt.Errorf("failed to cancel reminder for user %d: %w", userID, err)
	}
	delete(s.jobs, userID)
	s.logger.Info("Cancelled reminder", zap.Int64("user_id", userID))
	return nil
}

// fire runs one trigger. It re-validates the stored reminder time so a
// trigger left over from a cancel-then-reschedule race stays silent, and
// any failure is isolated to this user.
func (s *Scheduler) fire(userID int64, at models.TimeOfDay) {
	ctx := context.Background()

	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		s.logger.Error("Reminder fire: failed to load user",
			zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if user.ReminderTime == nil || *user.ReminderTime != at {
		s.logger.Info("Skipping stale reminder trigger",
			zap.Int64("user_id", userID),
			zap.String("scheduled_at", at.String()))
		return
	}

	text, ok := announceText[user.Language]
	if !ok {
		text = announceText[models.LanguageRussian]
	}
	if err := s.notifier.SendText(userID, text); err != nil {
		s.logger.Error("Reminder fire: failed to send announcement",
			zap.Error(err), zap.Int64("user_id", userID))
		return
	}

	if s.onFire == nil {
		s.logger.Error("Reminder fired with no survey starter wired", zap.Int64("user_id", userID))
		return
	}
	s.onFire(ctx, userID, userID, models.DateOnly(s.now()))
}

// Restore re-registers triggers for every user with a stored reminder
// time. Triggers are not persisted on their own, so this runs at startup
// or a restart would silently drop them all.
func (s *Scheduler) Restore(ctx context.Context) error {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	restored := 0
	for _, user := range users {
		if user.ReminderTime == nil {
			continue
		}
		if err := s.Schedule(user.UserID, *user.ReminderTime); err != nil {
			s.logger.Error("Failed to restore reminder",
				zap.Error(err), zap.Int64("user_id", user.UserID))
			continue
		}
		restored++
	}
	s.logger.Info("Restored reminder triggers", zap.Int("count", restored))
	return nil
}
