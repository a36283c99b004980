package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/db"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/embeddings"
	"github.com/ziadkadry99/doc-qa/internal/fetch"
	"github.com/ziadkadry99/doc-qa/internal/history"
	"github.com/ziadkadry99/doc-qa/internal/logging"
	"github.com/ziadkadry99/doc-qa/internal/qa"
	"github.com/ziadkadry99/doc-qa/internal/retrieval"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

const token = "test-token"

type stubFetcher struct{}

func (stubFetcher) FetchAndExtract(_ context.Context, url string) ([]chunker.Page, *fetch.DocumentInfo, error) {
	if strings.Contains(url, "missing") {
		return nil, nil, fetch.ErrDownload
	}
	return []chunker.Page{
		{Number: 1, Text: "COVERAGE\nThe policy covers maternity expenses after a waiting period of 24 months. Maternity benefits include delivery charges."},
	}, &fetch.DocumentInfo{URL: url, Filename: "policy.pdf"}, nil
}

type okGenerator struct{}

func (okGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "health check") {
		return "OK", nil
	}
	return "Maternity expenses are covered after a waiting period of 24 months.", nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	return newTestServerWithFetcher(t, cfg, stubFetcher{})
}

func newTestServerWithFetcher(t *testing.T, cfg Config, fetcher qa.Fetcher) *Server {
	t.Helper()
	logger := logging.Discard()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	index, err := vectordb.NewFlatIndex(t.TempDir(), 128, logger)
	require.NoError(t, err)
	orch := retrieval.New(chunker.New(chunker.DefaultOptions()), embeddings.NewPool(embeddings.NewHashEmbedder(128), 1, 8), index,
		retrieval.Options{Threshold: 0.3, Logger: logger})
	ans := answer.New(okGenerator{}, nil, nil, answer.Options{Logger: logger})
	svc := qa.New(fetcher, orch, ans, okGenerator{}, documents.NewStore(database), history.NewStore(database),
		qa.Options{QuestionConcurrency: 2, Version: "test", Logger: logger})

	if cfg.APIToken == "" {
		cfg.APIToken = token
	}
	cfg.Version = "test"
	return New(cfg, svc, logger)
}

func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRootAndPing(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, "/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]string](t, rec)
	assert.Equal(t, "/api/v1", info["api_version"])
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = do(t, s, http.MethodGet, "/ping", "", false)
	assert.Equal(t, "pong", decode[map[string]string](t, rec)["status"])
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/api/v1/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[qa.HealthResponse](t, rec)
	assert.Equal(t, qa.StatusHealthy, h.Status)
	assert.Equal(t, "test", h.Version)
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, "/api/v1/stats", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, rec).ErrorCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid authentication token", decode[ErrorResponse](t, rec).Error)

	rec = do(t, s, http.MethodGet, "/api/v1/stats", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunAndQuery(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/hackrx/run",
		`{"documents":"https://example.com/policy.pdf","questions":["Is maternity covered?","What is the waiting period?"]}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[qa.DocumentResponse](t, rec)
	assert.Len(t, run.Answers, 2)
	assert.Equal(t, fetch.DocumentID("https://example.com/policy.pdf"), run.DocumentID)

	rec = do(t, s, http.MethodPost, "/api/v1/query", `{"query":"maternity waiting period","document_id":"`+run.DocumentID+`"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[answer.QueryResponse](t, rec)
	assert.Contains(t, resp.Result, "24 months")
	assert.NotEmpty(t, resp.Rationale)

	rec = do(t, s, http.MethodGet, "/api/v1/documents", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]documents.Document](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/api/v1/queries", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]history.Entry](t, rec), 3)
}

func TestRunValidation(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/hackrx/run", `{"documents":`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/hackrx/run", `{"documents":"https://example.com/a.pdf","questions":[]}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[ErrorResponse](t, rec).ErrorCode)

	rec = do(t, s, http.MethodPost, "/api/v1/hackrx/run", `{"documents":"https://example.com/missing.pdf","questions":["q"]}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DOCUMENT_DOWNLOAD_FAILED", decode[ErrorResponse](t, rec).ErrorCode)

	rec = do(t, s, http.MethodPost, "/api/v1/query", `{"query":""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunRejectsLocalPaths(t *testing.T) {
	s := newTestServerWithFetcher(t, Config{}, fetch.New(time.Second, 1<<20))

	existing := filepath.Join(t.TempDir(), "policy.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.4 local"), 0o644))
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	var details []string
	for _, path := range []string{"/etc/hosts", "file:///etc/hosts", existing, "file://" + existing, missing} {
		body, err := json.Marshal(qa.DocumentRequest{Documents: path, Questions: []string{"q"}})
		require.NoError(t, err)

		rec := do(t, s, http.MethodPost, "/api/v1/hackrx/run", string(body), true)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		e := decode[ErrorResponse](t, rec)
		assert.Equal(t, "DOCUMENT_DOWNLOAD_FAILED", e.ErrorCode, path)
		assert.Contains(t, e.Detail, "local files are not allowed", path)
		details = append(details, e.Detail)
	}
	for _, d := range details[1:] {
		assert.Equal(t, details[0], d, "responses must not reveal whether a path exists")
	}

	rec := do(t, s, http.MethodGet, "/api/v1/documents", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, d := range decode[[]documents.Document](t, rec) {
		assert.NotEqual(t, documents.StatusIndexed, d.Status)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodDelete, "/api/v1/documents/unknown", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/hackrx/run", `{"documents":"https://example.com/p.pdf","questions":["q"]}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[qa.DocumentResponse](t, rec).DocumentID

	rec = do(t, s, http.MethodDelete, "/api/v1/documents/"+id, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["passages_removed"])

	rec = do(t, s, http.MethodDelete, "/api/v1/index/clear", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Index cleared successfully", decode[map[string]string](t, rec)["message"])
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).ErrorCode)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/ping", "", false).Code)
	}
	rec := do(t, s, http.MethodGet, "/ping", "", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, rec).ErrorCode)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := newRateLimiter(1, time.Minute, logging.Discard())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.reserve("10.0.0.1")
	assert.True(t, ok)
	ok, wait := rl.reserve("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, time.Minute.Seconds(), wait.Seconds(), 1)

	ok, _ = rl.reserve("10.0.0.2")
	assert.True(t, ok, "other clients are unaffected")

	now = now.Add(time.Minute)
	ok, _ = rl.reserve("10.0.0.1")
	assert.True(t, ok, "bucket refills over the window")
}

func TestWebSocketAsk(t *testing.T) {
	s := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ask", Query: "Is maternity covered?"}))
	var got wsResponse
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "answer", got.Type)
	require.NotNil(t, got.Response)
	assert.Equal(t, "Is maternity covered?", got.Response.Query)

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "bogus"}))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "error", got.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "invalid message format", got.Error)
}
