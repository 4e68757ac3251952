package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func TestIAMTokenSourceRefresh(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["yandexPassportOauthToken"] != "oauth-secret" {
			t.Errorf("oauth token = %q", body["yandexPassportOauthToken"])
		}
		json.NewEncoder(w).Encode(map[string]string{"iamToken": "iam-123"})
	}))
	defer srv.Close()

	source := NewIAMTokenSource("oauth-secret", srv.Client(), zap.NewNop())
	source.endpoint = srv.URL

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if token != "iam-123" {
		t.Errorf("token = %q", token)
	}

	// second call serves from cache
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("IAM endpoint hit %d times, want 1", calls)
	}
}

func TestIAMTokenSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	source := NewIAMTokenSource("bad", srv.Client(), zap.NewNop())
	source.endpoint = srv.URL

	if _, err := source.Token(context.Background()); err == nil {
		t.Error("expected an error on non-200 status")
	}
}

func TestRecognize(t *testing.T) {
	audio := []byte("fake-mp3")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("lang"); got != "kk-KK" {
			t.Errorf("lang = %q", got)
		}
		if got := r.URL.Query().Get("folderId"); got != "folder-1" {
			t.Errorf("folderId = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		body := new(bytes.Buffer)
		body.ReadFrom(r.Body)
		if !bytes.Equal(body.Bytes(), audio) {
			t.Error("audio body mismatch")
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "менің басым ауырады"})
	}))
	defer srv.Close()

	rec := NewRecognizer(staticTokens("tok"), "folder-1", srv.Client(), zap.NewNop())
	rec.endpoint = srv.URL

	got, err := rec.Recognize(context.Background(), audio, models.LanguageKazakh)
	if err != nil {
		t.Fatal(err)
	}
	if got != "менің басым ауырады" {
		t.Errorf("got %q", got)
	}
}

func TestRecognizeNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"result": ""})
	}))
	defer srv.Close()

	rec := NewRecognizer(staticTokens("tok"), "folder-1", srv.Client(), zap.NewNop())
	rec.endpoint = srv.URL

	_, err := rec.Recognize(context.Background(), []byte("silence"), models.LanguageRussian)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("got %v, want ErrNoSpeech", err)
	}
}

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Texts  []string `json:"texts"`
			Source string   `json:"sourceLanguageCode"`
			Target string   `json:"targetLanguageCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Source != "kk" || body.Target != "ru" {
			t.Errorf("direction %s -> %s", body.Source, body.Target)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "у меня болит голова"}},
		})
	}))
	defer srv.Close()

	tr := NewTranslator(staticTokens("tok"), "folder-1", srv.Client(), zap.NewNop())
	tr.endpoint = srv.URL

	got, err := tr.Translate(context.Background(), "менің басым ауырады",
		models.LanguageKazakh, models.LanguageRussian)
	if err != nil {
		t.Fatal(err)
	}
	if got != "у меня болит голова" {
		t.Errorf("got %q", got)
	}
}

func TestSynthesizeVoiceSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("voice"); got != "amira" {
			t.Errorf("voice = %q", got)
		}
		if got := r.PostForm.Get("format"); got != "mp3" {
			t.Errorf("format = %q", got)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	synth := NewSynthesizer(staticTokens("tok"), "folder-1", srv.Client(), zap.NewNop())
	synth.endpoint = srv.URL

	audio, err := synth.Synthesize(context.Background(), "Сәлеметсіз бе", models.LanguageKazakh)
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestLocaleFor(t *testing.T) {
	if LocaleFor(models.LanguageRussian) != "ru-RU" {
		t.Error("ru locale")
	}
	if LocaleFor(models.LanguageKazakh) != "kk-KK" {
		t.Error("kk locale")
	}
}
