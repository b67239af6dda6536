package llm

import (
	"context"

	"digest_server/core/domain"
	"digest_server/core/port/out"
	"digest_server/pkg/apperr"
)

// Summarizer builds prompts, calls the completion service and validates its output.
type Summarizer struct {
	completer    out.Completer
	maxBodyChars int
}

var _ out.EmailSummarizer = (*Summarizer)(nil)

func NewSummarizer(completer out.Completer, maxBodyChars int) *Summarizer {
	if maxBodyChars <= 0 {
		maxBodyChars = defaultMaxBodyChars
	}
	return &Summarizer{
		completer:    completer,
		maxBodyChars: maxBodyChars,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, email *domain.Email) (*domain.SummaryResult, error) {
	raw, err := s.complete(ctx, SummarizePrompt(email, s.maxBodyChars))
	if err != nil {
		return nil, err
	}
	return ParseSummary(raw)
}

func (s *Summarizer) Resummarize(ctx context.Context, email *domain.Email) (*domain.SummaryResult, error) {
	raw, err := s.complete(ctx, ResummarizePrompt(email, s.maxBodyChars))
	if err != nil {
		return nil, err
	}
	return ParseResummary(raw)
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if apperr.IsAppError(err) {
			return "", err
		}
		return "", apperr.AIServiceError(err)
	}
	return raw, nil
}
