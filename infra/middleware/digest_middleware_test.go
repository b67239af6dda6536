package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digest_server/pkg/apperr"
	"digest_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(Recover(), RequestID(), RequestLogger())
	app.Get("/", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", apperr.NotFound("email"), 404, apperr.CodeNotFound, "email not found"},
		{"wrapped app error", errors.Join(apperr.MalformedAIResponse("output is not valid JSON")), 502,
			apperr.CodeMalformedAIResponse, "malformed AI response: output is not valid JSON"},
		{"database", apperr.DatabaseError("list emails", errors.New("conn reset")), 500, apperr.CodeDatabaseError, ""},
		{"fiber error", fiber.ErrMethodNotAllowed, 405, "METHOD_NOT_ALLOWED", "Method Not Allowed"},
		{"plain error", errors.New("boom"), 500, apperr.CodeInternalError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(func(c *fiber.Ctx) error { return tt.err })
			status, body := call(t, app)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.wantCode, body["code"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["error"])
			}
			assert.NotEmpty(t, body["requestId"])
			assert.NotContains(t, body["error"], "conn reset")
		})
	}
}

func TestRecover(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error { panic("kaboom") })
	status, body := call(t, app)
	assert.Equal(t, 500, status)
	assert.Equal(t, apperr.CodeInternalError, body["code"])
}

func TestRequestID_SetsUserContext(t *testing.T) {
	var fromCtx any
	app := newApp(func(c *fiber.Ctx) error {
		fromCtx = c.UserContext().Value(logger.RequestIDKey)
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(HeaderRequestID))
	assert.Equal(t, "abc", fromCtx)
}

type sample struct {
	IDs   []string `json:"ids" validate:"required,min=1,dive,uuid"`
	Sort  string   `query:"sort" validate:"omitempty,oneof=newest oldest count"`
	Title string   `json:"title" validate:"max=3"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want string
	}{
		{"valid", sample{IDs: []string{"9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d"}}, ""},
		{"missing", sample{}, "ids is required"},
		{"empty", sample{IDs: []string{}}, "ids must contain at least 1 item(s)"},
		{"bad uuid", sample{IDs: []string{"9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d", "x"}}, "ids[1] must be a valid UUID"},
		{"bad sort", sample{IDs: []string{"9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d"}, Sort: "top"}, "sort must be one of: newest, oldest, count"},
		{"too long", sample{IDs: []string{"9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d"}, Title: "abcd"}, "title must be at most 3 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperr.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestUUIDParam(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/emails/:id", func(c *fiber.Ctx) error {
		id, err := UUIDParam(c, "id")
		if err != nil {
			return err
		}
		return c.SendString(id.String())
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/emails/9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/emails/123", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestParseUUIDs(t *testing.T) {
	ids, err := ParseUUIDs([]string{"9b2f3c1e-8d4a-4f6b-9c2d-1e3f5a7b9c0d"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = ParseUUIDs([]string{"nope"})
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Post("/summarize", rl.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	post := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest("POST", "/summarize", nil), -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, 200, post().StatusCode)
	resp := post()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = post()
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, "61", resp.Header.Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, apperr.CodeRateLimited, body["code"])

	now = now.Add(61 * time.Second)
	assert.Equal(t, 200, post().StatusCode)

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders(), NoCache())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}
