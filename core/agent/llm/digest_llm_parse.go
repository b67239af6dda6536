package llm

import (
	"fmt"
	"strings"

	"digest_server/core/domain"
	"digest_server/pkg/apperr"

	"github.com/goccy/go-json"
)

type summaryPayload struct {
	Summary  *string  `json:"summary"`
	Category *string  `json:"category"`
	Keywords []string `json:"keywords"`
}

// ParseSummary validates first-time summarization output.
func ParseSummary(raw string) (*domain.SummaryResult, error) {
	return parse(raw, true)
}

// ParseResummary validates re-summarization output. Category and keywords are ignored.
func ParseResummary(raw string) (*domain.SummaryResult, error) {
	return parse(raw, false)
}

func parse(raw string, full bool) (*domain.SummaryResult, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}
	result, reason := validate(payload, full)
	if reason != "" {
		return nil, apperr.MalformedAIResponse(reason)
	}
	return result, nil
}

// decodePayload parses raw as JSON, falling back to the span between the
// first '{' and the last '}' when the model wrapped the object in prose.
func decodePayload(raw string) (*summaryPayload, error) {
	var payload summaryPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err == nil {
		return &payload, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, apperr.MalformedAIResponse("output is not valid JSON")
	}

	payload = summaryPayload{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, apperr.MalformedAIResponse("output is not valid JSON").WithError(err)
	}
	return &payload, nil
}

// validate returns the structured result, or a non-empty reason when invalid.
func validate(p *summaryPayload, full bool) (*domain.SummaryResult, string) {
	if p.Summary == nil {
		return nil, "summary is missing"
	}
	summary := strings.TrimSpace(*p.Summary)
	if summary == "" {
		return nil, "summary is empty"
	}

	result := &domain.SummaryResult{Summary: summary}
	if !full {
		return result, ""
	}

	category := domain.DefaultCategory
	if p.Category != nil {
		parsed, ok := domain.ParseCategory(*p.Category)
		if !ok {
			return nil, fmt.Sprintf("category %q is not allowed", *p.Category)
		}
		category = parsed
	}
	result.Category = &category

	keywords := make([]string, 0, len(p.Keywords))
	for _, kw := range p.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	result.Keywords = keywords

	return result, ""
}
