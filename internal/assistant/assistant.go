// Package assistant drives vendor-held conversation threads through the
// OpenAI assistants API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrRunTimeout marks a run that did not finish within the configured
// deadline. Distinct from other gateway failures so callers can tell a
// slow assistant from a broken one.
var ErrRunTimeout = errors.New("assistant: run polling timed out")

// Result is one completed exchange: the display reply plus the full
// message list retained for payload extraction.
type Result struct {
	Reply    string
	ThreadID string
	// Messages holds every message text in the vendor's returned order,
	// newest first, fenced blocks included.
	Messages []string
}

// Gateway appends an utterance to a thread, runs the assistant and polls
// until the run reaches a terminal status.
type Gateway struct {
	client       *openai.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func New(apiKey string, pollInterval, pollTimeout time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:       openai.NewClient(apiKey),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// NewThread opens a fresh vendor-held conversation.
func (g *Gateway) NewThread(ctx context.Context) (string, error) {
	thread, err := g.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// Ask appends the utterance to the thread (creating one when threadID is
// empty), runs the assistant identified by assistantID and returns the
// latest reply. The reply text is truncated at the first fenced-json
// opener for display; the full message list keeps the fenced block.
func (g *Gateway) Ask(ctx context.Context, threadID, utterance, assistantID string) (*Result, error) {
	if threadID == "" {
		var err error
		threadID, err = g.NewThread(ctx)
		if err != nil {
			return nil, err
		}
		g.logger.Info("Created new thread", zap.String("thread_id", threadID))
	}

	_, err := g.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	run, err := g.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	run, err = g.waitForRun(ctx, threadID, run)
	if err != nil {
		return nil, err
	}
	if run.Status != openai.RunStatusCompleted {
		return nil, fmt.Errorf("run finished with status %s", run.Status)
	}

	list, err := g.client.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := &Result{ThreadID: threadID}
	for _, msg := range list.Messages {
		text := messageText(msg)
		if text == "" {
			continue
		}
		result.Messages = append(result.Messages, text)
		if result.Reply == "" && msg.Role == openai.ChatMessageRoleAssistant {
			result.Reply = strings.SplitN(text, "```json", 2)[0]
		}
	}
	if result.Reply == "" {
		return nil, fmt.Errorf("assistant produced no reply")
	}
	return result, nil
}

func (g *Gateway) waitForRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	deadline := time.NewTimer(g.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for run.Status == openai.RunStatusQueued ||
		run.Status == openai.RunStatusInProgress ||
		run.Status == openai.RunStatusCancelling {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-deadline.C:
			g.logger.Warn("Run polling deadline reached",
				zap.String("thread_id", threadID),
				zap.String("run_id", run.ID))
			return run, ErrRunTimeout
		case <-ticker.C:
		}

		var err error
		run, err = g.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("failed to retrieve run: %w", err)
		}
	}
	return run, nil
}

func messageText(msg openai.Message) string {
	for _, part := range msg.Content {
		if part.Text != nil {
			return part.Text.Value
		}
	}
	return ""
}
