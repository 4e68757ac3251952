package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cephalgo/diary-bot/internal/models"
)

func TestInProgressDerivesPhaseFromPersona(t *testing.T) {
	reg := InProgress(models.LanguageRussian, PersonaRegistration, "thread-1")
	if reg.Phase != PhaseRegistration {
		t.Errorf("registration persona phase = %v", reg.Phase)
	}
	sv := InProgress(models.LanguageKazakh, PersonaSurvey, "thread-2")
	if sv.Phase != PhaseSurvey {
		t.Errorf("survey persona phase = %v", sv.Phase)
	}
}

func TestTargetDate(t *testing.T) {
	now := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

	s := InProgress(models.LanguageRussian, PersonaSurvey, "t")
	if got := s.TargetDate(now); !got.Equal(models.DateOnly(now)) {
		t.Errorf("zero SelectedDate should resolve to today, got %v", got)
	}

	s.SelectedDate = time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	if got := s.TargetDate(now); !got.Equal(s.SelectedDate) {
		t.Errorf("SelectedDate should win, got %v", got)
	}
}

func TestLangDefaultsToRussian(t *testing.T) {
	var s *Session
	if s.Lang() != models.LanguageRussian {
		t.Error("nil session should default to Russian")
	}
	if AwaitingLanguage().Lang() != models.LanguageRussian {
		t.Error("unset language should default to Russian")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx, 1)
	if err != nil || got != nil {
		t.Fatalf("absent session: got %v, %v", got, err)
	}

	s := InProgress(models.LanguageKazakh, PersonaSurvey, "thread-1")
	if err := store.Put(ctx, 1, s); err != nil {
		t.Fatal(err)
	}

	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.ThreadID != "thread-1" || got.Language != models.LanguageKazakh {
		t.Errorf("got %+v", got)
	}

	// mutating the returned copy must not leak into the store
	got.ThreadID = "mutated"
	again, _ := store.Get(ctx, 1)
	if again.ThreadID != "thread-1" {
		t.Error("store returned a shared pointer")
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, 1)
	if got != nil {
		t.Error("session survived delete")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	got, err := store.Get(ctx, 42)
	if err != nil || got != nil {
		t.Fatalf("absent session: got %v, %v", got, err)
	}

	s := InProgress(models.LanguageRussian, PersonaRegistration, "thread-9")
	s.SelectedDate = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, 42, s); err != nil {
		t.Fatal(err)
	}

	got, err = store.Get(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != PhaseRegistration || got.ThreadID != "thread-9" {
		t.Errorf("got %+v", got)
	}
	if !got.SelectedDate.Equal(s.SelectedDate) {
		t.Errorf("SelectedDate = %v", got.SelectedDate)
	}

	if err := store.Delete(ctx, 42); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, 42)
	if got != nil {
		t.Error("session survived delete")
	}
}

func TestRedisStoreTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, 7, Idle(models.LanguageRussian)); err != nil {
		t.Fatal(err)
	}

	srv.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("session should expire with the TTL")
	}
}
