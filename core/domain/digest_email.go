package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the fixed classification assigned by first-time summarization.
type Category string

const (
	CategoryMeeting        Category = "Meeting"
	CategoryInvoice        Category = "Invoice"
	CategorySupportRequest Category = "Support Request"
	CategoryHR             Category = "HR"
	CategoryGeneral        Category = "General"
)

// DefaultCategory is held by every email until it is first summarized.
const DefaultCategory = CategoryGeneral

// Categories lists the allowed categories in prompt order.
var Categories = []Category{
	CategoryMeeting,
	CategoryInvoice,
	CategorySupportRequest,
	CategoryHR,
	CategoryGeneral,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches s case-insensitively against the allowed categories.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// CategoryNames returns the allowed categories as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// ContentHash fingerprints an email by its trimmed sender, subject and body.
func ContentHash(sender, subject, body string) string {
	raw := strings.TrimSpace(sender) + "|" + strings.TrimSpace(subject) + "|" + strings.TrimSpace(body)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RawEmail is an email as submitted for ingestion.
type RawEmail struct {
	Sender  string `json:"sender" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// Hash returns the content hash of the raw email.
func (r RawEmail) Hash() string {
	return ContentHash(r.Sender, r.Subject, r.Body)
}

// Email is a stored email and its summarization state.
//
// SummaryCount == 0, Summary == nil and LastSummarizedAt == nil always hold together.
type Email struct {
	ID               uuid.UUID  `json:"id"`
	Sender           string     `json:"sender"`
	Subject          string     `json:"subject"`
	Body             string     `json:"body"`
	ContentHash      string     `json:"-"`
	Summary          *string    `json:"summary"`
	Category         Category   `json:"category"`
	Keywords         []string   `json:"keywords"`
	SummaryCount     int        `json:"summaryCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastSummarizedAt *time.Time `json:"lastSummarizedAt"`
}

// NewEmail builds an unsummarized email from raw input.
func NewEmail(raw RawEmail, now time.Time) *Email {
	return &Email{
		ID:          uuid.New(),
		Sender:      raw.Sender,
		Subject:     raw.Subject,
		Body:        raw.Body,
		ContentHash: raw.Hash(),
		Category:    DefaultCategory,
		Keywords:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsSummarized reports whether the email has been summarized at least once.
func (e *Email) IsSummarized() bool {
	return e.SummaryCount > 0
}

// SummaryText returns the summary or an empty string.
func (e *Email) SummaryText() string {
	if e.Summary == nil {
		return ""
	}
	return *e.Summary
}

// ApplySummary applies a successful summarization in memory, mirroring the store update.
func (e *Email) ApplySummary(u *SummaryUpdate) {
	summary := u.Summary
	e.Summary = &summary
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.Keywords != nil {
		e.Keywords = append([]string{}, u.Keywords...)
	}
	e.SummaryCount++
	at := u.At
	e.LastSummarizedAt = &at
	e.UpdatedAt = at
}

// SummaryResult is validated output of the summarization client.
// Category and Keywords are unset for re-summarization.
type SummaryResult struct {
	Summary  string
	Category *Category
	Keywords []string
}

// SummaryUpdate is the mutation written after a successful summarization.
// A nil Category or Keywords leaves the stored value unchanged.
type SummaryUpdate struct {
	Summary  string
	Category *Category
	Keywords []string
	At       time.Time
}

// IngestResult reports the outcome of an ingestion batch.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// BatchResult is the per-id outcome of a summarization batch.
type BatchResult struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}
