package out

import (
	"context"

	"digest_server/core/domain"
)

// Completer sends a prompt to a text-completion service and returns the raw output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmailSummarizer turns an email into a validated summary.
type EmailSummarizer interface {
	// Summarize produces summary, category and keywords.
	Summarize(ctx context.Context, email *domain.Email) (*domain.SummaryResult, error)
	// Resummarize produces a replacement summary only.
	Resummarize(ctx context.Context, email *domain.Email) (*domain.SummaryResult, error)
}
