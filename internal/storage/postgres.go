package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// Column allow-lists for the field-update operations. The orchestrator
// writes payload keys one by one; anything outside these sets is rejected
// instead of reaching the SQL layer.
var userColumns = map[string]bool{
	"username": true, "firstname": true, "lastname": true, "fio": true,
	"birthdate": true, "menstrual_cycle": true, "country": true, "city": true,
	"medication": true, "const_medication": true, "const_medication_name": true,
	"reminder_time": true, "language": true, "role": true,
}

var surveyColumns = map[string]bool{
	"headache_today": true, "medicament_today": true, "pain_intensity": true,
	"pain_area": true, "area_detail": true, "pain_type": true, "comments": true,
	"created_at": true, "updated_at": true,
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (userid, username, firstname, lastname, language, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID,
		user.Username,
		user.FirstName,
		user.LastName,
		string(user.Language),
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `
		SELECT userid, username, firstname, lastname, fio, birthdate, menstrual_cycle,
		       country, city, medication, const_medication, const_medication_name,
		       reminder_time, language, role, created_at, updated_at
		FROM users
		WHERE userid = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u            models.User
		fio          sql.NullString
		birthdate    sql.NullTime
		cycle        sql.NullString
		country      sql.NullString
		city         sql.NullString
		medication   sql.NullString
		constMed     sql.NullString
		constMedName sql.NullString
		reminder     sql.NullString
		role         sql.NullString
		lang         string
	)

	err := row.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName, &fio,
		&birthdate, &cycle, &country, &city, &medication, &constMed, &constMedName,
		&reminder, &lang, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.FIO = fio.String
	u.MenstrualCycle = cycle.String
	u.Country = country.String
	u.City = city.String
	u.Medication = medication.String
	u.ConstMedication = constMed.String
	u.ConstMedicationName = constMedName.String
	u.Role = role.String
	u.Language = models.Language(lang)
	if birthdate.Valid {
		bd := birthdate.Time
		u.BirthDate = &bd
	}
	if reminder.Valid && len(reminder.String) >= 5 {
		if tod, err := models.ParseTimeOfDay(reminder.String[:5]); err == nil {
			u.ReminderTime = &tod
		}
	}
	return &u, nil
}

func (s *PostgresStorage) UpdateUserField(ctx context.Context, userID int64, field string, value any) error {
	if !userColumns[field] {
		return fmt.Errorf("unknown user field %q", field)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = $1, updated_at = $2 WHERE userid = $3`, field)
	result, err := s.db.ExecContext(ctx, query, toDBValue(value), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("error updating user field %s: %w", field, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT userid, username, firstname, lastname, fio, birthdate, menstrual_cycle,
		       country, city, medication, const_medication, const_medication_name,
		       reminder_time, language, role, created_at, updated_at
		FROM users`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStorage) DeleteUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE userid = $1`, userID)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CreateSurvey(ctx context.Context, survey *models.Survey) error {
	query := `
		INSERT INTO survey (userid, headache_today, medicament_today, pain_intensity,
		                    pain_area, area_detail, pain_type, comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING survey_id`

	err := s.db.QueryRowContext(ctx, query,
		survey.UserID,
		survey.HeadacheToday,
		survey.MedicamentToday,
		survey.PainIntensity,
		survey.PainArea,
		survey.AreaDetail,
		survey.PainType,
		survey.Comments,
		survey.CreatedAt,
		survey.UpdatedAt,
	).Scan(&survey.SurveyID)
	if err != nil {
		return fmt.Errorf("error creating survey: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListSurveys(ctx context.Context, userID int64) ([]*models.Survey, error) {
	query := `
		SELECT survey_id, userid, headache_today, medicament_today, pain_intensity,
		       pain_area, area_detail, pain_type, comments, created_at, updated_at
		FROM survey
		WHERE userid = $1
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying surveys: %w", err)
	}
	defer rows.Close()

	var surveys []*models.Survey
	for rows.Next() {
		var (
			sv        models.Survey
			headache  sql.NullString
			meds      sql.NullString
			intensity sql.NullInt64
			area      sql.NullString
			detail    sql.NullString
			painType  sql.NullString
			comments  sql.NullString
		)
		err := rows.Scan(&sv.SurveyID, &sv.UserID, &headache, &meds, &intensity,
			&area, &detail, &painType, &comments, &sv.CreatedAt, &sv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning survey: %w", err)
		}
		sv.HeadacheToday = headache.String
		sv.MedicamentToday = meds.String
		sv.PainIntensity = int(intensity.Int64)
		sv.PainArea = area.String
		sv.AreaDetail = detail.String
		sv.PainType = painType.String
		sv.Comments = comments.String
		surveys = append(surveys, &sv)
	}
	return surveys, rows.Err()
}

func (s *PostgresStorage) UpdateSurveyField(ctx context.Context, surveyID, userID int64, field string, value any) error {
	if !surveyColumns[field] {
		return fmt.Errorf("unknown survey field %q", field)
	}

	query := fmt.Sprintf(`UPDATE survey SET %s = $1 WHERE survey_id = $2 AND userid = $3`, field)
	result, err := s.db.ExecContext(ctx, query, toDBValue(value), surveyID, userID)
	if err != nil {
		return fmt.Errorf("error updating survey field %s: %w", field, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// toDBValue maps domain values onto driver-friendly ones. A nil TimeOfDay
// pointer clears the reminder column.
func toDBValue(value any) any {
	switch v := value.(type) {
	case models.TimeOfDay:
		return v.String() + ":00"
	case *models.TimeOfDay:
		if v == nil {
			return nil
		}
		return v.String() + ":00"
	case models.Language:
		return string(v)
	default:
		return value
	}
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
