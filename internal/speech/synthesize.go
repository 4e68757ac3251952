package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

const defaultTTSEndpoint = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"

var voices = map[models.Language]string{
	models.LanguageRussian: "oksana",
	models.LanguageKazakh:  "amira",
}

// Synthesizer turns reply text into spoken mp3 audio.
type Synthesizer struct {
	tokens   TokenProvider
	folderID string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewSynthesizer(tokens TokenProvider, folderID string, client *http.Client, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		tokens:   tokens,
		folderID: folderID,
		endpoint: defaultTTSEndpoint,
		client:   client,
		logger:   logger,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, lang models.Language) ([]byte, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	voice, ok := voices[lang]
	if !ok {
		voice = voices[models.LanguageRussian]
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", LocaleFor(lang))
	form.Set("voice", voice)
	form.Set("folderId", s.folderID)
	form.Set("format", "mp3")
	form.Set("sampleRateHertz", "48000")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis failed with status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
