package llm

import (
	"fmt"
	"strings"

	"digest_server/core/domain"
)

const defaultMaxBodyChars = 4000

// SummarizePrompt asks for a summary, one category and keywords as strict JSON.
func SummarizePrompt(email *domain.Email, maxBody int) string {
	categories := domain.CategoryNames()
	return fmt.Sprintf(`Summarize this email in 2-3 sentences.
Assign ONE category from: %s.
Extract 3-6 keywords.

Return ONLY JSON:
{
  "summary": "string",
  "category": "%s",
  "keywords": ["string"]
}

%s`, strings.Join(categories, ", "), strings.Join(categories, "|"), emailBlock(email, maxBody))
}

// ResummarizePrompt asks for a replacement summary only.
func ResummarizePrompt(email *domain.Email, maxBody int) string {
	return fmt.Sprintf(`Re-summarize this email in 2-3 sentences.

Return ONLY JSON:
{
  "summary": "string"
}

%s`, emailBlock(email, maxBody))
}

func emailBlock(email *domain.Email, maxBody int) string {
	return fmt.Sprintf("Email:\nSender: %s\nSubject: %s\nBody: %s",
		strings.TrimSpace(email.Sender),
		strings.TrimSpace(email.Subject),
		truncateBody(strings.TrimSpace(email.Body), maxBody))
}

// truncateBody cuts body to maxLen runes and marks the cut.
func truncateBody(body string, maxLen int) string {
	if maxLen <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= maxLen {
		return body
	}
	return string(runes[:maxLen]) + "..."
}
