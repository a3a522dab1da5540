// Package chat proxies patient conversations to the completion service,
// anchoring every exchange to the patient's overall report summary.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medichain/medichain/internal/platform/completion"
)

var (
	ErrMissingSummary  = errors.New("summary is required")
	ErrMissingMessages = errors.New("messages must be an array")
	ErrMissingQuestion = errors.New("question is required")
)

const systemPromptPrefix = "You are a medical report assistant. Use the following overall summary as " +
	"authoritative context for the conversation. Provide clear, concise, patient-friendly explanations, " +
	"and do not invent facts not supported by the summary. If unsure, suggest consulting a clinician."

const insightWordLimit = 22

// Completer is the completion call the service depends on.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	Configured() bool
}

// Service answers patient questions grounded in their report summary.
type Service struct {
	client Completer
}

func NewService(client Completer) *Service {
	return &Service{client: client}
}

// Configured reports whether the completion backend has credentials.
func (s *Service) Configured() bool { return s.client.Configured() }

// Chat runs one conversation turn. The summary is injected as the system
// prompt so replies stay grounded in the patient's own reports.
func (s *Service) Chat(ctx context.Context, summary string, messages []completion.Message) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", ErrMissingSummary
	}
	if messages == nil {
		return "", ErrMissingMessages
	}

	prompt := fmt.Sprintf("%s\n\nOVERALL SUMMARY:\n%s", systemPromptPrefix, summary)
	turns := make([]completion.Message, 0, len(messages)+1)
	turns = append(turns, completion.Message{Role: "system", Content: prompt})
	turns = append(turns, messages...)

	reply, err := s.client.Complete(ctx, completion.Request{
		Messages:    turns,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

// Insight produces a one-sentence takeaway for the patient's question,
// truncated to a hard word cap. Callers treat it as advisory only.
func (s *Service) Insight(ctx context.Context, summary, question string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", ErrMissingSummary
	}
	if strings.TrimSpace(question) == "" {
		return "", ErrMissingQuestion
	}

	prompt := fmt.Sprintf(
		"Based on this medical summary, give one short insight (under %d words) relevant to the patient's question. "+
			"No preamble, just the insight.\n\nSUMMARY:\n%s",
		insightWordLimit, summary)

	insight, err := s.client.Complete(ctx, completion.Request{
		Messages: []completion.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: question},
		},
		Temperature: 0.3,
		MaxTokens:   60,
	})
	if err != nil {
		return "", fmt.Errorf("insight completion: %w", err)
	}
	return capWords(strings.TrimSpace(insight), insightWordLimit), nil
}

// capWords truncates text to at most n words.
func capWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ")
}
