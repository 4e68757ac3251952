package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

// ErrNoSpeech is returned when the recognizer produced no result; the
// caller re-prompts the user instead of treating this as a failure.
var ErrNoSpeech = errors.New("speech: no recognition result")

const defaultSTTEndpoint = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"

// LocaleFor maps a diary language to the vendor's locale code.
func LocaleFor(lang models.Language) string {
	if lang == models.LanguageKazakh {
		return "kk-KK"
	}
	return "ru-RU"
}

// Recognizer converts short audio clips to text.
type Recognizer struct {
	tokens   TokenProvider
	folderID string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewRecognizer(tokens TokenProvider, folderID string, client *http.Client, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		tokens:   tokens,
		folderID: folderID,
		endpoint: defaultSTTEndpoint,
		client:   client,
		logger:   logger,
	}
}

// Recognize sends the audio with a language hint and returns the
// recognized text, or ErrNoSpeech when the vendor heard nothing.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, lang models.Language) (string, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	query := url.Values{}
	query.Set("folderId", r.folderID)
	query.Set("lang", LocaleFor(lang))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.endpoint+"?"+query.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build recognition request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognition failed with status %d", resp.StatusCode)
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode recognition response: %w", err)
	}

	if result.Result == "" {
		r.logger.Info("Recognition result is empty")
		return "", ErrNoSpeech
	}
	return result.Result, nil
}
