package http

import (
	"digest_server/core/domain"
	"digest_server/core/port/in"
	"digest_server/infra/middleware"
	"digest_server/internal/seed"
	"digest_server/pkg/apperr"
	"digest_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type IngestHandler struct {
	ingestService in.IngestService
	// defaults supplies the batch for a request without a body.
	defaults func() ([]domain.RawEmail, error)
}

func NewIngestHandler(ingestService in.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService, defaults: seed.Default}
}

func (h *IngestHandler) Register(router fiber.Router) {
	router.Post("/ingest", h.Ingest)
}

// Ingest handles POST /api/ingest. The body is a JSON array of emails or
// {"emails": [...]}; an empty body ingests the bundled demo mailbox.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var (
		emails []domain.RawEmail
		err    error
	)
	if len(c.Body()) == 0 {
		emails, err = h.defaults()
		if err != nil {
			return apperr.InternalWithError(err)
		}
	} else {
		emails, err = seed.Parse(c.Body())
		if err != nil {
			return apperr.BadRequest("request body must be an array of emails or {\"emails\": [...]}")
		}
		if err := middleware.ValidateStruct(&ingestRequest{Emails: emails}); err != nil {
			return err
		}
	}

	result, err := h.ingestService.Ingest(c.UserContext(), emails)
	if err != nil {
		return err
	}
	return response.Fields(c, fiber.Map{
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
		"total":    result.Total,
	})
}
