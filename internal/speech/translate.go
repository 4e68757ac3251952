package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/models"
)

const defaultTranslateEndpoint = "https://translate.api.cloud.yandex.net/translate/v2/translate"

// Translator bridges the user's language and the assistant's working
// language (Russian).
type Translator struct {
	tokens   TokenProvider
	folderID string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewTranslator(tokens TokenProvider, folderID string, client *http.Client, logger *zap.Logger) *Translator {
	return &Translator{
		tokens:   tokens,
		folderID: folderID,
		endpoint: defaultTranslateEndpoint,
		client:   client,
		logger:   logger,
	}
}

func (t *Translator) Translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"folder_id":          t.folderID,
		"texts":              []string{text},
		"sourceLanguageCode": string(source),
		"targetLanguageCode": string(target),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation failed with status %d", resp.StatusCode)
	}

	var result struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}

	if len(result.Translations) == 0 {
		return "", fmt.Errorf("translation returned no results")
	}
	return result.Translations[0].Text, nil
}
