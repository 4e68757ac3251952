package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cephalgo/diary-bot/internal/models"
)

// MemoryStorage keeps all records in process memory. Used for local runs
// and tests; semantics mirror the Postgres implementation.
type MemoryStorage struct {
	mu           sync.RWMutex
	users        map[int64]*models.User
	surveys      map[int64][]*models.Survey
	nextSurveyID int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:        make(map[int64]*models.User),
		surveys:      make(map[int64][]*models.Survey),
		nextSurveyID: 1,
	}
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return fmt.Errorf("user %d already exists", user.UserID)
	}
	clone := *user
	s.users[user.UserID] = &clone
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryStorage) UpdateUserField(ctx context.Context, userID int64, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrNotFound
	}

	switch field {
	case "username":
		user.Username = asString(value)
	case "firstname":
		user.FirstName = asString(value)
	case "lastname":
		user.LastName = asString(value)
	case "fio":
		user.FIO = asString(value)
	case "birthdate":
		switch v := value.(type) {
		case time.Time:
			user.BirthDate = &v
		case *time.Time:
			user.BirthDate = v
		case nil:
			user.BirthDate = nil
		default:
			return fmt.Errorf("birthdate: unsupported value %T", value)
		}
	case "menstrual_cycle":
		user.MenstrualCycle = asString(value)
	case "country":
		user.Country = asString(value)
	case "city":
		user.City = asString(value)
	case "medication":
		user.Medication = asString(value)
	case "const_medication":
		user.ConstMedication = asString(value)
	case "const_medication_name":
		user.ConstMedicationName = asString(value)
	case "reminder_time":
		switch v := value.(type) {
		case models.TimeOfDay:
			user.ReminderTime = &v
		case *models.TimeOfDay:
			user.ReminderTime = v
		case nil:
			user.ReminderTime = nil
		default:
			return fmt.Errorf("reminder_time: unsupported value %T", value)
		}
	case "language":
		user.Language = models.Language(asString(value))
	case "role":
		user.Role = asString(value)
	default:
		return fmt.Errorf("unknown user field %q", field)
	}

	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

func (s *MemoryStorage) DeleteUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	delete(s.surveys, userID)
	return nil
}

func (s *MemoryStorage) CreateSurvey(ctx context.Context, survey *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	survey.SurveyID = s.nextSurveyID
	s.nextSurveyID++
	clone := *survey
	s.surveys[survey.UserID] = append(s.surveys[survey.UserID], &clone)
	return nil
}

func (s *MemoryStorage) ListSurveys(ctx context.Context, userID int64) ([]*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.surveys[userID]
	surveys := make([]*models.Survey, 0, len(list))
	for _, sv := range list {
		clone := *sv
		surveys = append(surveys, &clone)
	}
	return surveys, nil
}

func (s *MemoryStorage) UpdateSurveyField(ctx context.Context, surveyID, userID int64, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sv := range s.surveys[userID] {
		if sv.SurveyID != surveyID {
			continue
		}
		switch field {
		case "headache_today":
			sv.HeadacheToday = asString(value)
		case "medicament_today":
			sv.MedicamentToday = asString(value)
		case "pain_intensity":
			switch v := value.(type) {
			case int:
				sv.PainIntensity = v
			case float64:
				sv.PainIntensity = int(v)
			default:
				return fmt.Errorf("pain_intensity: unsupported value %T", value)
			}
		case "pain_area":
			sv.PainArea = asString(value)
		case "area_detail":
			sv.AreaDetail = asString(value)
		case "pain_type":
			sv.PainType = asString(value)
		case "comments":
			sv.Comments = asString(value)
		case "created_at":
			if t, ok := value.(time.Time); ok {
				sv.CreatedAt = t
			}
		case "updated_at":
			if t, ok := value.(time.Time); ok {
				sv.UpdatedAt = t
			}
		default:
			return fmt.Errorf("unknown survey field %q", field)
		}
		return nil
	}
	return ErrNotFound
}

func asString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
