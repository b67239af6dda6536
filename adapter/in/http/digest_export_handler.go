package http

import (
	"time"

	"digest_server/core/port/in"
	"digest_server/core/service/query"
	"digest_server/infra/middleware"
	"digest_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const csvContentType = "text/csv; charset=utf-8"

type ExportHandler struct {
	queryService in.QueryService
	now          func() time.Time
}

func NewExportHandler(queryService in.QueryService) *ExportHandler {
	return &ExportHandler{queryService: queryService, now: time.Now}
}

func (h *ExportHandler) Register(router fiber.Router) {
	router.Post("/summaries/export", h.ExportSelected)
	router.Get("/summaries/export", h.ExportAll)
}

// ExportSelected handles POST /api/summaries/export with {"ids": [...]}.
func (h *ExportHandler) ExportSelected(c *fiber.Ctx) error {
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
	return h.send(c, ids)
}

func (h *ExportHandler) ExportAll(c *fiber.Ctx) error {
	return h.send(c, nil)
}

func (h *ExportHandler) send(c *fiber.Ctx, ids []uuid.UUID) error {
	data, err := h.queryService.Export(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return response.Attachment(c, query.ExportFilename("email", h.now()), csvContentType, data)
}
