package http

import (
	"digest_server/core/domain"
	"digest_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// idsRequest selects emails for summarization or export.
type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type ingestRequest struct {
	Emails []domain.RawEmail `json:"emails" validate:"dive"`
}

// listRequest mirrors the query string of GET /api/emails.
type listRequest struct {
	Search   string `query:"search" validate:"max=200"`
	Category string `query:"category"`
	Sort     string `query:"sort" validate:"omitempty,oneof=newest oldest count"`
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
}

func (r *listRequest) toQuery() (*domain.ListQuery, error) {
	q := &domain.ListQuery{
		Search: r.Search,
		Page:   r.Page,
		Limit:  r.Limit,
	}
	if r.Category != "" {
		cat, ok := domain.ParseCategory(r.Category)
		if !ok {
			return nil, apperr.InvalidInput("category", "unknown category")
		}
		q.Category = &cat
	}
	sort, err := domain.ParseSortKey(r.Sort)
	if err != nil {
		return nil, apperr.InvalidInput("sort", err.Error())
	}
	q.Sort = sort
	return q, nil
}

// decodeBody unmarshals a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(c *fiber.Ctx, dst any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.BadRequest("request body is not valid JSON")
	}
	return nil
}
