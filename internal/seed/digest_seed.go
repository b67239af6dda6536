// Package seed provides the bundled demo mailbox and the JSON format used to
// ingest email batches from files or request bodies.
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"

	"digest_server/core/domain"

	"github.com/goccy/go-json"
)

//go:embed mock_emails.json
var mockEmails []byte

// ErrEmpty is returned by Parse when the payload has no content.
var ErrEmpty = errors.New("empty payload")

// Default returns the bundled demo emails.
func Default() ([]domain.RawEmail, error) {
	return Parse(mockEmails)
}

// Parse accepts either a bare JSON array of emails or {"emails": [...]}.
func Parse(data []byte) ([]domain.RawEmail, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var emails []domain.RawEmail
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &emails); err != nil {
			return nil, fmt.Errorf("decode email array: %w", err)
		}
	case '{':
		var wrapped struct {
			Emails []domain.RawEmail `json:"emails"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode email object: %w", err)
		}
		emails = wrapped.Emails
	default:
		return nil, errors.New("expected a JSON array or an object with an emails field")
	}

	if emails == nil {
		emails = []domain.RawEmail{}
	}
	return emails, nil
}
