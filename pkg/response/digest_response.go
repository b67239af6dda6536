// Package response renders the API's JSON envelope. Every body carries an
// "ok" flag; failures add error, code and requestId.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the wire form of a failed request.
type ErrorBody struct {
	OK        bool           `json:"ok"`
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// DataBody wraps a single payload.
type DataBody struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// PageBody wraps a page of rows with its pagination block.
type PageBody struct {
	OK         bool `json:"ok"`
	Data       any  `json:"data"`
	Pagination any  `json:"pagination"`
}

// OK returns {"ok":true,"data":data}.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(DataBody{OK: true, Data: data})
}

// Page returns a page of rows.
func Page(c *fiber.Ctx, data, pagination any) error {
	return c.JSON(PageBody{OK: true, Data: data, Pagination: pagination})
}

// Fields returns {"ok":true} merged with fields.
func Fields(c *fiber.Ctx, fields fiber.Map) error {
	body := make(fiber.Map, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ok"] = true
	return c.JSON(body)
}

// Attachment sends body as a downloadable file.
func Attachment(c *fiber.Ctx, filename, contentType string, body []byte) error {
	c.Attachment(filename)
	// Attachment guesses the type from the extension; keep the explicit one.
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}

// Error writes an error envelope with the given status.
func Error(c *fiber.Ctx, status int, code, message string, details map[string]any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(ErrorBody{
		OK:        false,
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestID,
	})
}
