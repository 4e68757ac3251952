package storage

import (
	"context"
	"errors"

	"github.com/cephalgo/diary-bot/internal/models"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage is the durable record store for user profiles and diary entries.
// Every operation is independently fallible; callers treat each call as
// at-most-once and do not retry automatically.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// UpdateUserField writes a single profile column. Field names follow
	// the JSON/database naming (fio, birthdate, reminder_time, ...).
	UpdateUserField(ctx context.Context, userID int64, field string, value any) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, userID int64) error

	CreateSurvey(ctx context.Context, survey *models.Survey) error
	ListSurveys(ctx context.Context, userID int64) ([]*models.Survey, error)
	UpdateSurveyField(ctx context.Context, surveyID, userID int64, field string, value any) error

	Close() error
}
