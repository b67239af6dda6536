package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"digest_server/adapter/out/memory"
	"digest_server/core/domain"
	"digest_server/core/service/ingest"
	"digest_server/core/service/query"
	"digest_server/core/service/summary"
	"digest_server/infra/middleware"
	"digest_server/internal/seed"
	"digest_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// stubSummarizer fails any email whose subject contains "fail".
type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, e *domain.Email) (*domain.SummaryResult, error) {
	if strings.Contains(e.Subject, "fail") {
		return nil, apperr.AIServiceError(errors.New("upstream 500"))
	}
	cat := domain.CategoryMeeting
	return &domain.SummaryResult{Summary: "first " + e.Subject, Category: &cat, Keywords: []string{"k1", "k2", "k3"}}, nil
}

func (stubSummarizer) Resummarize(_ context.Context, e *domain.Email) (*domain.SummaryResult, error) {
	return &domain.SummaryResult{Summary: "again " + e.Subject}, nil
}

type HandlerTestSuite struct {
	suite.Suite
	app   *fiber.App
	store *memory.EmailStore
	ready error
}

func (s *HandlerTestSuite) SetupTest() {
	s.store = memory.NewEmailStore()
	s.ready = nil

	querySvc := query.NewService(s.store)
	summarySvc := summary.NewService(s.store, stubSummarizer{}, summary.Config{Concurrency: 2}, zerolog.Nop())

	s.app = fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	s.app.Use(middleware.RequestID())

	NewHealthHandler(map[string]HealthChecker{
		"store": PingFunc(func(context.Context) error { return s.ready }),
	}).Register(s.app)

	api := s.app.Group("/api")
	NewIngestHandler(ingest.NewService(s.store)).Register(api)
	NewEmailHandler(querySvc, summarySvc).Register(api)
	exports := NewExportHandler(querySvc)
	exports.now = func() time.Time { return time.Date(2026, 3, 5, 14, 7, 0, 0, time.UTC) }
	exports.Register(api)
}

func (s *HandlerTestSuite) do(method, path, body string) (int, map[string]any) {
	status, raw, _ := s.doRaw(method, path, body)
	var out map[string]any
	s.Require().NoError(json.Unmarshal(raw, &out), string(raw))
	return status, out
}

func (s *HandlerTestSuite) doRaw(method, path, body string) (int, []byte, map[string]string) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	headers := map[string]string{
		"Content-Type":        resp.Header.Get("Content-Type"),
		"Content-Disposition": resp.Header.Get("Content-Disposition"),
		"X-Request-ID":        resp.Header.Get("X-Request-ID"),
	}
	return resp.StatusCode, raw, headers
}

func (s *HandlerTestSuite) ingestN(n int, subject string) []uuid.UUID {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"sender":"s%d@x.io","subject":"%s %02d","body":"body %d"}`, i, subject, i, i)
	}
	status, body := s.do("POST", "/api/ingest", "["+strings.Join(items, ",")+"]")
	s.Require().Equal(200, status, body)

	all, err := s.store.ListAll(context.Background())
	s.Require().NoError(err)
	ids := make([]uuid.UUID, 0, len(all))
	for _, e := range all {
		if strings.HasPrefix(e.Subject, subject) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (s *HandlerTestSuite) TestHealthAndReady() {
	status, body := s.do("GET", "/health", "")
	s.Equal(200, status)
	s.Equal(map[string]any{"ok": true, "status": "UP"}, body)

	status, body = s.do("GET", "/ready", "")
	s.Equal(200, status)
	s.Equal("ready", body["status"])

	s.ready = errors.New("connection refused")
	status, body = s.do("GET", "/ready", "")
	s.Equal(503, status)
	s.Equal(false, body["ok"])
	s.Equal("unhealthy: connection refused", body["checks"].(map[string]any)["store"])
}

func (s *HandlerTestSuite) TestIngest() {
	body := `{"emails":[{"sender":"a","subject":"b","body":"c"},{"sender":"a","subject":"b","body":"c"}]}`
	status, resp := s.do("POST", "/api/ingest", body)
	s.Equal(200, status)
	s.Equal(true, resp["ok"])
	s.Equal(float64(1), resp["inserted"])
	s.Equal(float64(1), resp["skipped"])
	s.Equal(float64(2), resp["total"])

	_, resp = s.do("POST", "/api/ingest", `[{"sender":"a","subject":"b","body":"c"}]`)
	s.Equal(float64(0), resp["inserted"])
	s.Equal(float64(1), resp["skipped"])
}

func (s *HandlerTestSuite) TestIngest_EmptyBodyUsesSeed() {
	want, err := seed.Default()
	s.Require().NoError(err)

	status, resp := s.do("POST", "/api/ingest", "")
	s.Equal(200, status)
	s.Equal(float64(len(want)), resp["inserted"])
	s.Equal(len(want), s.store.Len())

	_, resp = s.do("POST", "/api/ingest", "")
	s.Equal(float64(0), resp["inserted"])
	s.Equal(float64(len(want)), resp["skipped"])
}

func (s *HandlerTestSuite) TestIngest_Invalid() {
	status, resp := s.do("POST", "/api/ingest", `[{"sender":"a","subject":"b","body":"c"},{"sender":"a","body":"c"}]`)
	s.Equal(400, status)
	s.Equal(false, resp["ok"])
	s.Equal(apperr.CodeValidationFailed, resp["code"])
	s.Equal("emails[1].subject is required", resp["error"])
	s.NotEmpty(resp["requestId"])
	s.Equal(0, s.store.Len())

	status, resp = s.do("POST", "/api/ingest", `{"emails":`)
	s.Equal(400, status)
	s.Equal(apperr.CodeBadRequest, resp["code"])
}

func (s *HandlerTestSuite) TestList_Pagination() {
	s.ingestN(25, "note")

	status, resp := s.do("GET", "/api/emails?limit=10&page=3", "")
	s.Equal(200, status)
	s.Len(resp["data"], 5)
	s.Equal(map[string]any{
		"page": float64(3), "limit": float64(10), "total": float64(25), "totalPages": float64(3),
	}, resp["pagination"])

	_, resp = s.do("GET", "/api/emails?search=NOTE%2007", "")
	s.Len(resp["data"], 1)

	_, resp = s.do("GET", "/api/emails?category=general&sort=oldest&limit=1", "")
	s.Len(resp["data"], 1)
	s.Equal(float64(25), resp["pagination"].(map[string]any)["total"])

	_, resp = s.do("GET", "/api/emails?category=HR", "")
	s.Len(resp["data"], 0)

	status, resp = s.do("GET", "/api/emails?page=9223372036854775807", "")
	s.Equal(200, status)
	s.Len(resp["data"], 0)
	s.Equal(float64(domain.MaxPage), resp["pagination"].(map[string]any)["page"])
	s.Equal(float64(25), resp["pagination"].(map[string]any)["total"])
}

func (s *HandlerTestSuite) TestList_InvalidFilters() {
	tests := []struct {
		query string
		msg   string
	}{
		{"?category=Nonsense", "invalid input for 'category': unknown category"},
		{"?sort=popular", "sort must be one of: newest, oldest, count"},
		{"?page=abc", "invalid query parameters"},
	}
	for _, tt := range tests {
		status, resp := s.do("GET", "/api/emails"+tt.query, "")
		s.Equal(400, status, tt.query)
		s.Equal(tt.msg, resp["error"], tt.query)
	}
}

func (s *HandlerTestSuite) TestGetAndDelete() {
	ids := s.ingestN(1, "doc")

	status, resp := s.do("GET", "/api/emails/"+ids[0].String(), "")
	s.Equal(200, status)
	data := resp["data"].(map[string]any)
	s.Equal(ids[0].String(), data["id"])
	s.Equal("General", data["category"])
	s.Nil(data["summary"])
	s.NotContains(data, "contentHash")

	status, resp = s.do("DELETE", "/api/emails/"+ids[0].String(), "")
	s.Equal(200, status)
	s.Equal(map[string]any{"ok": true}, resp)

	status, resp = s.do("GET", "/api/emails/"+ids[0].String(), "")
	s.Equal(404, status)
	s.Equal(apperr.CodeNotFound, resp["code"])

	status, _ = s.do("DELETE", "/api/emails/"+ids[0].String(), "")
	s.Equal(404, status)

	status, resp = s.do("GET", "/api/emails/not-a-uuid", "")
	s.Equal(400, status)
	s.Equal(apperr.CodeValidationFailed, resp["code"])
}

func (s *HandlerTestSuite) TestSummarize() {
	ok := s.ingestN(2, "sync")
	bad := s.ingestN(1, "fail")

	body := fmt.Sprintf(`{"ids":["%s","%s","%s"]}`, ok[0], bad[0], ok[1])
	status, resp := s.do("POST", "/api/emails/summarize", body)
	s.Equal(200, status)
	s.Equal(true, resp["ok"])

	results := resp["results"].([]any)
	s.Require().Len(results, 3)
	for i, want := range []bool{true, false, true} {
		r := results[i].(map[string]any)
		s.Equal(want, r["ok"], "result %d", i)
	}
	s.Equal(bad[0].String(), results[1].(map[string]any)["id"])
	s.Contains(results[1].(map[string]any)["error"], "AI service request failed")

	email, err := s.store.GetByID(context.Background(), ok[0])
	s.Require().NoError(err)
	s.Equal(1, email.SummaryCount)
	s.Equal(domain.CategoryMeeting, email.Category)
}

func (s *HandlerTestSuite) TestSummarize_Invalid() {
	tests := []struct {
		body string
		msg  string
	}{
		{``, "ids is required"},
		{`{"ids":[]}`, "ids must contain at least 1 item(s)"},
		{`{"ids":["nope"]}`, "ids[0] must be a valid UUID"},
	}
	for _, tt := range tests {
		status, resp := s.do("POST", "/api/emails/summarize", tt.body)
		s.Equal(400, status, tt.body)
		s.Equal(apperr.CodeValidationFailed, resp["code"], tt.body)
		s.Equal(tt.msg, resp["error"], tt.body)
	}
}

func (s *HandlerTestSuite) TestResummarize() {
	ids := s.ingestN(1, "weekly")

	status, resp := s.do("POST", "/api/emails/"+ids[0].String()+"/resummarize", "")
	s.Equal(200, status)
	data := resp["data"].(map[string]any)
	s.Equal("again weekly 00", data["summary"])
	s.Equal("General", data["category"])
	s.Equal(float64(1), data["summaryCount"])

	status, resp = s.do("POST", "/api/emails/"+uuid.NewString()+"/resummarize", "")
	s.Equal(404, status)
	s.Equal(apperr.CodeNotFound, resp["code"])
}

func (s *HandlerTestSuite) TestExport() {
	ids := s.ingestN(3, "report")

	status, raw, headers := s.doRaw("POST", "/api/summaries/export", fmt.Sprintf(`{"ids":["%s"]}`, ids[1]))
	s.Equal(200, status)
	s.Equal(csvContentType, headers["Content-Type"])
	s.Equal(`attachment; filename="email_05-Mar-2026_14-07UTC.csv"`, headers["Content-Disposition"])
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	s.Require().Len(lines, 2)
	s.Equal("sender,subject,email,summary,createdAt,updatedAt", strings.TrimSpace(lines[0]))
	s.Contains(lines[1], ids[1].String())

	status, raw, _ = s.doRaw("GET", "/api/summaries/export", "")
	s.Equal(200, status)
	s.Len(strings.Split(strings.TrimSpace(string(raw)), "\n"), 4)

	status, resp := s.do("POST", "/api/summaries/export", `{"ids":[]}`)
	s.Equal(400, status)
	s.Equal(apperr.CodeValidationFailed, resp["code"])
}

func (s *HandlerTestSuite) TestRequestIDPropagates() {
	req := httptest.NewRequest("GET", "/api/emails/"+uuid.NewString(), nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Equal("req-42", resp.Header.Get("X-Request-ID"))

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("req-42", body["requestId"])
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
