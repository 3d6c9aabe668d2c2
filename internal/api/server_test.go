package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/clock/fake"
	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/ledger"
	ledgermemory "github.com/JakeFAU/crawlersvc/internal/ledger/memory"
	"github.com/JakeFAU/crawlersvc/internal/results"
	"github.com/JakeFAU/crawlersvc/internal/storage/memory"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	batches [][]string
	jobID   string
	err     error
}

func (f *fakeSubmitter) Submit(url string) (string, error) {
	return f.SubmitBatch([]string{url})
}

func (f *fakeSubmitter) SubmitBatch(urls []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.batches = append(f.batches, append([]string(nil), urls...))
	return f.jobID, nil
}

func (f *fakeSubmitter) dispatched() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

type testEnv struct {
	server    *Server
	submitter *fakeSubmitter
	ledger    *ledger.Ledger
	store     *results.Store
	clock     *fake.Clock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clk := fake.New(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	led := ledger.New(ledgermemory.New(), clk, zap.NewNop())
	store, err := results.New(memory.NewBlobStore(memory.WithClock(clk.Now)), clk, results.Config{}, zap.NewNop())
	require.NoError(t, err)
	sub := &fakeSubmitter{jobID: "20240601000000000000"}
	return &testEnv{
		server:    NewServer(sub, led, store, zap.NewNop(), opts...),
		submitter: sub,
		ledger:    led,
		store:     store,
		clock:     clk,
	}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitBatch_DeduplicatesAndDispatches(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/submit", `{"urls":["http://a","http://a","https://b"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "20240601000000000000", body["job_id"])
	assert.Equal(t, "Crawling jobs initiated", body["status"])
	require.Len(t, env.submitter.dispatched(), 1)
	assert.Equal(t, []string{"http://a", "https://b"}, env.submitter.dispatched()[0])
}

func TestSubmitBatch_FiltersInvalidEntries(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/submit", `{"urls":["ftp://x", 42, null, "example.com", "https://ok"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://ok"}, env.submitter.dispatched()[0])
}

func TestSubmitBatch_Rejections(t *testing.T) {
	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("%q", fmt.Sprintf("https://example.com/%d", i))
	}

	cases := []struct {
		name   string
		body   string
		detail string
	}{
		{name: "InvalidJSON", body: `{invalid`, detail: "Invalid JSON object."},
		{name: "TrailingData", body: `{"urls":["https://a"]} garbage`, detail: "Invalid JSON object."},
		{name: "TwoObjects", body: `{"urls":["https://a"]}{"urls":["https://b"]}`, detail: "Invalid JSON object."},
		{name: "NotObject", body: `["https://a"]`, detail: "Payload must be a JSON object."},
		{name: "MissingKey", body: `{"links":[]}`, detail: "Missing 'urls' key in payload."},
		{name: "NotList", body: `{"urls":"https://a"}`, detail: "'urls' must be a list."},
		{name: "TooMany", body: `{"urls":[` + strings.Join(tooMany, ",") + `]}`, detail: "Maximum 100 URLs allowed."},
		{name: "NoneValid", body: `{"urls":["ftp://a", 1]}`, detail: "No valid URLs provided"},
		{name: "Empty", body: `{"urls":[]}`, detail: "No valid URLs provided"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/submit", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.detail, decode(t, rec)["detail"])
			assert.Empty(t, env.submitter.dispatched())
		})
	}
}

func TestSubmitBatch_ExactlyHundredAccepted(t *testing.T) {
	env := newTestEnv(t)
	urls := make([]string, 100)
	for i := range urls {
		urls[i] = fmt.Sprintf("%q", fmt.Sprintf("https://example.com/%d", i))
	}
	rec := env.do(http.MethodPost, "/submit", `{"urls":[`+strings.Join(urls, ",")+`]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.submitter.dispatched()[0], 100)
}

func TestSubmitBatch_DispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.err = errors.New("id generator broken")
	rec := env.do(http.MethodPost, "/submit", `{"urls":["https://a"]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/submit_url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "URL submitted for crawling.", body["message"])
	assert.Equal(t, "20240601000000000000", body["job_id"])
	assert.Equal(t, [][]string{{"https://example.com"}}, env.submitter.dispatched())
}

func TestSubmitURL_RecentlyCrawled(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ledger.Record(context.Background(), "https://example.com"))

	rec := env.do(http.MethodPost, "/submit_url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "URL was recently crawled. Duplicate submission.", decode(t, rec)["detail"])
	assert.Empty(t, env.submitter.dispatched())

	env.clock.Advance(ledger.Window + time.Second)
	rec = env.do(http.MethodPost, "/submit_url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitURL_Validation(t *testing.T) {
	for name, body := range map[string]string{
		"Missing":   `{}`,
		"Empty":     `{"url":""}`,
		"BadScheme": `{"url":"ftp://example.com"}`,
		"BadJSON":   `{`,
		"Trailing":  `{"url":"https://example.com"} extra`,
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/submit_url", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, env.submitter.dispatched())
		})
	}
}

func saveResults(t *testing.T, env *testEnv, jobID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		env.clock.Advance(time.Second)
		_, err := env.store.Save(context.Background(), jobID, crawler.Artifact{
			URL:   fmt.Sprintf("https://example.com/%03d", i),
			Links: []string{},
			Title: "t",
		})
		require.NoError(t, err)
	}
}

func TestGetResults(t *testing.T) {
	env := newTestEnv(t)
	saveResults(t, env, "job", 120)

	rec := env.do(http.MethodGet, "/results/job", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page results.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Results, 100)
	assert.Equal(t, "https://example.com/119", page.Results[0].URL)

	rec = env.do(http.MethodGet, "/results/job?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Results, 20)
}

func TestGetResults_Errors(t *testing.T) {
	env := newTestEnv(t)
	saveResults(t, env, "job", 1)

	cases := []struct {
		target string
		status int
	}{
		{"/results/unknown", http.StatusNotFound},
		{"/results/job?page=0", http.StatusUnprocessableEntity},
		{"/results/job?page=-1", http.StatusUnprocessableEntity},
		{"/results/job?page=abc", http.StatusUnprocessableEntity},
		{"/results/job?page=2", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := env.do(http.MethodGet, tc.target, "")
		assert.Equal(t, tc.status, rec.Code, tc.target)
	}

	rec := env.do(http.MethodGet, "/results/job?page=2", "")
	assert.Equal(t, "Page number out of range", decode(t, rec)["detail"])
}

func TestHealthReadinessAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	env := newTestEnv(t, WithReadiness(func(context.Context) error { return errors.New("ledger down") }))
	rec := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
