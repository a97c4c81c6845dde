package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalysis "github.com/bryanwahyu/quiz-analysis/internal/application/analysis"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/httpserver"
)

type memGateway struct {
	records  []*domain.Record
	latest   []*domain.Record // returned in turn by FetchLatestFor
	fetchErr error
	calls    int
}

func (g *memGateway) FetchAll(context.Context) ([]*domain.Record, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.records, nil
}

func (g *memGateway) FetchLatestFor(context.Context, string) (*domain.Record, error) {
	g.calls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if len(g.latest) == 0 {
		return nil, nil
	}
	r := g.latest[0]
	g.latest = g.latest[1:]
	return r, nil
}

type stubSubmitter struct {
	ack *domain.Ack
	err error
}

func (s stubSubmitter) Submit(context.Context, domain.Submission) (*domain.Ack, error) {
	return s.ack, s.err
}

var analysed = &domain.Record{
	ID:          "7",
	CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	StudentID:   "S1",
	StudentName: "Ann",
	Subject:     "Math",
	Percentage:  92.5,
	WeakTopics:  "fractions,ratios",
	Conclusion:  "**Strong** performance",
}

func newService(gw *memGateway, sub domain.Submitter) *appanalysis.Service {
	return &appanalysis.Service{
		Gateway:   gw,
		Submitter: sub,
		Poll:      appanalysis.PollConfig{MaxAttempts: 3},
	}
}

func do(t *testing.T, h http.Handler, req *http.Request) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexEmptyHistory(t *testing.T) {
	h := httpserver.NewRouter(t.Context(), newService(&memGateway{}, stubSubmitter{}), httpserver.Options{})

	resp, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Webhook URL is configured")
	assert.Contains(t, body, "No previous analysis records found.")
}

func TestIndexHistory(t *testing.T) {
	gw := &memGateway{records: []*domain.Record{analysed}}
	h := httpserver.NewRouter(t.Context(), newService(gw, stubSubmitter{}), httpserver.Options{})

	_, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, body, "Student: Ann - ID: S1 - Subject: Math")
	assert.Contains(t, body, "Percentage: 92.5%")
	assert.Contains(t, body, "<strong>Strong</strong> performance")
}

func TestIndexStoreError(t *testing.T) {
	gw := &memGateway{fetchErr: domain.Connectivity(errors.New("timeout"))}
	h := httpserver.NewRouter(t.Context(), newService(gw, stubSubmitter{}), httpserver.Options{})

	resp, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Error fetching records:")
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

var annForm = url.Values{
	"student_id":  {"S1"},
	"name":        {"Ann"},
	"subject":     {"Math"},
	"percentage":  {"92.5"},
	"weak_topics": {"fractions,ratios"},
}

func TestSubmitFormSuccess(t *testing.T) {
	gw := &memGateway{latest: []*domain.Record{nil, analysed}}
	sub := stubSubmitter{ack: &domain.Ack{StatusCode: 200, Message: domain.StartedMessage}}
	h := httpserver.NewRouter(t.Context(), newService(gw, sub), httpserver.Options{})

	resp, body := do(t, h, postForm(annForm))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Response status code: 200")
	assert.Contains(t, body, "Waiting for analysis... (Attempts remaining: 2)")
	assert.Contains(t, body, "Analysis completed!")
	assert.Contains(t, body, "<strong>Strong</strong> performance")
	assert.Equal(t, 2, gw.calls)
}

func TestSubmitFormWebhookNotConfigured(t *testing.T) {
	gw := &memGateway{}
	h := httpserver.NewRouter(t.Context(), newService(gw, stubSubmitter{}), httpserver.Options{
		WebhookError: errors.New("webhook URL is not set"),
	})

	_, body := do(t, h, postForm(annForm))
	assert.Contains(t, body, "Cannot submit: Webhook URL is not configured!")
	assert.Zero(t, gw.calls)
}

func TestSubmitFormRejected(t *testing.T) {
	gw := &memGateway{}
	sub := stubSubmitter{err: &domain.ResponseError{StatusCode: 500, Body: "boom"}}
	h := httpserver.NewRouter(t.Context(), newService(gw, sub), httpserver.Options{})

	_, body := do(t, h, postForm(annForm))
	assert.Contains(t, body, "Error 500: boom")
	assert.Zero(t, gw.calls)
}

func TestSubmitFormExhausted(t *testing.T) {
	gw := &memGateway{}
	sub := stubSubmitter{ack: &domain.Ack{StatusCode: 200, Message: domain.StartedMessage}}
	h := httpserver.NewRouter(t.Context(), newService(gw, sub), httpserver.Options{})

	_, body := do(t, h, postForm(annForm))
	assert.Contains(t, body, "Analysis result not found after multiple retries.")
	assert.Contains(t, body, "Attempts remaining: 0")
	assert.Equal(t, 3, gw.calls)
}

func TestAPIAnalyses(t *testing.T) {
	gw := &memGateway{latest: []*domain.Record{nil, analysed}}
	sub := stubSubmitter{ack: &domain.Ack{StatusCode: 200, Message: domain.StartedMessage}}
	h := httpserver.NewRouter(t.Context(), newService(gw, sub), httpserver.Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(
		`{"student_id":"S1","student_name":"Ann","subject":"Math","score_percentage":92.5,"incorrect_topics":"fractions,ratios"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, body := do(t, h, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var got struct {
		SubmissionID string         `json:"submission_id"`
		Accepted     bool           `json:"accepted"`
		State        string         `json:"state"`
		Attempts     int            `json:"attempts"`
		Progress     []int          `json:"progress"`
		Record       *domain.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.NotEmpty(t, got.SubmissionID)
	assert.True(t, got.Accepted)
	assert.Equal(t, "succeeded", got.State)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, []int{2}, got.Progress)
	require.NotNil(t, got.Record)
	assert.Equal(t, "7", got.Record.ID)
}

func TestAPIErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		sub    domain.Submitter
		opts   httpserver.Options
		body   string
		status int
	}{
		{"invalid json", stubSubmitter{}, httpserver.Options{}, `{`, http.StatusBadRequest},
		{"invalid percentage", stubSubmitter{}, httpserver.Options{}, `{"student_id":"S1","score_percentage":101}`, http.StatusBadRequest},
		{"webhook not configured", stubSubmitter{}, httpserver.Options{WebhookError: domain.ErrConfiguration}, `{"student_id":"S1"}`, http.StatusServiceUnavailable},
		{"webhook rejected", stubSubmitter{err: &domain.ResponseError{StatusCode: 200, Message: "Queued"}}, httpserver.Options{}, `{"student_id":"S1"}`, http.StatusBadGateway},
		{"webhook unreachable", stubSubmitter{err: domain.Connectivity(errors.New("refused"))}, httpserver.Options{}, `{"student_id":"S1"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := httpserver.NewRouter(t.Context(), newService(&memGateway{}, tt.sub), tt.opts)
			resp, body := do(t, h, httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Contains(t, body, `"error"`)
		})
	}
}

func TestAPIRecords(t *testing.T) {
	gw := &memGateway{records: []*domain.Record{analysed}}
	h := httpserver.NewRouter(t.Context(), newService(gw, stubSubmitter{}), httpserver.Options{})

	resp, body := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/records", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []*domain.Record
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "S1", list[0].StudentID)

	resp, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/records/latest?student_id=S9", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/records/latest", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKeyRequired(t *testing.T) {
	h := httpserver.NewRouter(t.Context(), newService(&memGateway{}, stubSubmitter{}), httpserver.Options{
		APIKeys: map[string]string{"dashboard": "k1"},
	})

	resp, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/records", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	req.Header.Set("Authorization", "Bearer k1")
	resp, _ = do(t, h, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the HTML page stays open
	resp, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	h := httpserver.NewRouter(t.Context(), newService(&memGateway{}, stubSubmitter{}), httpserver.Options{})

	resp, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "submissions_total")
}

func TestSubmitTimeoutStopsPolling(t *testing.T) {
	gw := &memGateway{}
	sub := stubSubmitter{ack: &domain.Ack{StatusCode: 200, Message: domain.StartedMessage}}
	svc := &appanalysis.Service{
		Gateway:   gw,
		Submitter: sub,
		Poll:      appanalysis.PollConfig{MaxAttempts: 5, Delay: time.Hour},
	}
	h := httpserver.NewRouter(t.Context(), svc, httpserver.Options{SubmitTimeout: 50 * time.Millisecond})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"student_id":"S1","score_percentage":50}`))
	start := time.Now()
	resp, body := do(t, h, req)
	assert.Less(t, time.Since(start), 10*time.Second)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var got struct {
		State    string `json:"state"`
		Attempts int    `json:"attempts"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "failed", got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.Error, "deadline exceeded")
	assert.Equal(t, 1, gw.calls)

	_, page := do(t, h, postForm(annForm))
	assert.Contains(t, page, "request time limit was reached")
}
