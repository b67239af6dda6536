package http

import (
	"digest_server/core/port/in"
	"digest_server/infra/middleware"
	"digest_server/pkg/apperr"
	"digest_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type EmailHandler struct {
	queryService   in.QueryService
	summaryService in.SummaryService
}

func NewEmailHandler(queryService in.QueryService, summaryService in.SummaryService) *EmailHandler {
	return &EmailHandler{
		queryService:   queryService,
		summaryService: summaryService,
	}
}

// Register mounts the email routes. aiGuards run before every route that
// calls the completion service.
func (h *EmailHandler) Register(router fiber.Router, aiGuards ...fiber.Handler) {
	emails := router.Group("/emails")

	emails.Get("", h.ListEmails)
	emails.Post("/summarize", chain(aiGuards, h.SummarizeEmails)...)
	emails.Get("/:id", h.GetEmail)
	emails.Post("/:id/resummarize", chain(aiGuards, h.ResummarizeEmail)...)
	emails.Delete("/:id", h.DeleteEmail)
}

func chain(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	return append(handlers, h)
}

// ListEmails handles GET /api/emails?search=&category=&sort=&page=&limit=
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	var req listRequest
	if err := c.QueryParser(&req); err != nil {
		return apperr.ValidationFailed("invalid query parameters")
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		return err
	}
	q, err := req.toQuery()
	if err != nil {
		return err
	}

	page, err := h.queryService.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return response.Page(c, page.Emails, page.Pagination)
}

func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	id, err := middleware.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	email, err := h.queryService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, email)
}

// SummarizeEmails handles POST /api/emails/summarize with {"ids": [...]}.
// Per-email failures are reported in results; the request itself succeeds.
func (h *EmailHandler) SummarizeEmails(c *fiber.Ctx) error {
	var req idsRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		return err
	}
	ids, err := middleware.ParseUUIDs(req.IDs)
	if err != nil {
		return err
	}

	results, err := h.summaryService.SummarizeBatch(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return response.Fields(c, fiber.Map{"results": results})
}

func (h *EmailHandler) ResummarizeEmail(c *fiber.Ctx) error {
	id, err := middleware.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	email, err := h.summaryService.ResummarizeOne(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.OK(c, email)
}

func (h *EmailHandler) DeleteEmail(c *fiber.Ctx) error {
	id, err := middleware.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.queryService.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return response.Fields(c, nil)
}
