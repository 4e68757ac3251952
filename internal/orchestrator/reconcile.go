package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
	"github.com/cephalgo/diary-bot/internal/payload"
)

// Survey payload keys that map onto entry columns.
var surveyFields = []string{
	"headache_today",
	"medicament_today",
	"pain_intensity",
	"pain_area",
	"area_detail",
	"pain_type",
	"comments",
}

// reconcileSurvey upholds the one-entry-per-day invariant: it finds the
// entry whose creation date matches the selected day and updates it field
// by field, or inserts a fresh one. The store has no date-only index, so
// the lookup is a linear scan over the user's entries. Lookup-then-write
// is not atomic; the per-user turn lock is what keeps it safe.
func (o *Orchestrator) reconcileSurvey(ctx context.Context, userID int64, fields payload.Fields, day time.Time) error {
	surveys, err := o.storage.ListSurveys(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list surveys: %w", err)
	}

	var existing *models.Survey
	for _, sv := range surveys {
		if models.SameDay(sv.CreatedAt, day) {
			existing = sv
			break
		}
	}

	now := o.now()
	if existing == nil {
		survey := &models.Survey{
			UserID:          userID,
			HeadacheToday:   stringField(fields, "headache_today"),
			MedicamentToday: stringField(fields, "medicament_today"),
			PainIntensity:   fields.PainIntensity(),
			PainArea:        stringField(fields, "pain_area"),
			AreaDetail:      stringField(fields, "area_detail"),
			PainType:        stringField(fields, "pain_type"),
			Comments:        stringField(fields, "comments"),
			CreatedAt:       models.CombineDayAndClock(day, now),
			UpdatedAt:       now,
		}
		if err := o.storage.CreateSurvey(ctx, survey); err != nil {
			return fmt.Errorf("failed to insert survey: %w", err)
		}
		o.logger.Info("Inserted survey entry",
			zap.Int64("user_id", userID),
			zap.Int64("survey_id", survey.SurveyID),
			zap.Time("day", day))
		return nil
	}

	for _, field := range surveyFields {
		value, ok := fields[field]
		if !ok {
			continue
		}
		if field == "pain_intensity" {
			value = fields.PainIntensity()
		}
		if err := o.updateSurveyField(ctx, existing, field, value); err != nil {
			// Sibling writes continue past a failed field.
			o.logger.Error("Failed to update survey field",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.String("field", field))
		}
	}
	if err := o.updateSurveyField(ctx, existing, "updated_at", models.CombineDayAndClock(day, now)); err != nil {
		o.logger.Error("Failed to stamp survey updated_at",
			zap.Error(err), zap.Int64("user_id", userID))
	}

	o.logger.Info("Updated survey entry",
		zap.Int64("user_id", userID),
		zap.Int64("survey_id", existing.SurveyID),
		zap.Time("day", day))
	return nil
}

func (o *Orchestrator) updateSurveyField(ctx context.Context, sv *models.Survey, field string, value any) error {
	return o.storage.UpdateSurveyField(ctx, sv.SurveyID, sv.UserID, field, value)
}

func stringField(fields payload.Fields, key string) string {
	s, _ := fields[key].(string)
	return s
}
