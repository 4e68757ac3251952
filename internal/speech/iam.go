// Package speech wraps the Yandex Cloud speech, translation and IAM APIs.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenProvider supplies a bearer token for the speech vendor. Injected
// into the gateways so tests can substitute a fake.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

const defaultIAMEndpoint = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// IAMTokenSource exchanges a long-lived OAuth token for short-lived IAM
// tokens and refreshes them on a timer.
type IAMTokenSource struct {
	oauthToken string
	endpoint   string
	client     *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

func NewIAMTokenSource(oauthToken string, client *http.Client, logger *zap.Logger) *IAMTokenSource {
	return &IAMTokenSource{
		oauthToken: oauthToken,
		endpoint:   defaultIAMEndpoint,
		client:     client,
		logger:     logger,
	}
}

// Token returns the current IAM token, fetching one on first use.
func (s *IAMTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a fresh IAM token and stores it.
func (s *IAMTokenSource) Refresh(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"yandexPassportOauthToken": s.oauthToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build IAM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch IAM token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("IAM token request failed with status %d", resp.StatusCode)
	}

	var result struct {
		IAMToken string `json:"iamToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode IAM response: %w", err)
	}

	s.mu.Lock()
	s.token = result.IAMToken
	s.mu.Unlock()

	s.logger.Info("Received new IAM token")
	return result.IAMToken, nil
}

// Run refreshes the token on the given interval until ctx is cancelled.
func (s *IAMTokenSource) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Error("Failed to refresh IAM token", zap.Error(err))
			}
		}
	}
}
