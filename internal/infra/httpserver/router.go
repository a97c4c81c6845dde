package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	appanalysis "github.com/bryanwahyu/quiz-analysis/internal/application/analysis"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/middleware"
)

// Options configures the router beyond the analysis service.
type Options struct {
	// WebhookError is the startup validation result; non-nil disables submissions.
	WebhookError error
	APIKeys      map[string]string
	RateLimit    struct {
		Capacity   int
		RefillRate int
	}
	HealthCheckers map[string]middleware.HealthChecker
	// SubmitTimeout bounds submit-and-wait requests; 0 leaves only the client's context.
	SubmitTimeout time.Duration
}

type Router struct {
	svc        *appanalysis.Service
	webhookErr error
	tmpl       *template.Template
}

// NewRouter builds the HTTP handler. ctx scopes background work such as the
// rate limiter's sweeper and should live as long as the server.
func NewRouter(ctx context.Context, svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc, webhookErr: opts.WebhookError, tmpl: parseTemplates()}

	capacity, refill := opts.RateLimit.Capacity, opts.RateLimit.RefillRate
	if capacity <= 0 {
		capacity = 20
	}
	if refill <= 0 {
		refill = 1
	}
	limit := middleware.RateLimitMiddleware(ctx, capacity, refill)
	deadline := withDeadline(opts.SubmitTimeout)

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Get("/", r.handleIndex)
	mux.With(limit, deadline).Post("/submit", r.handleSubmitForm)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.Use(limit)

		rt.Get("/records", r.wrap(r.handleRecords))
		rt.Get("/records/latest", r.wrap(r.handleLatest))
		rt.With(deadline).Post("/analyses", r.wrap(r.handleAnalyze))
	})

	return mux
}

// withDeadline cancels the request context after d so a long poll stops
// even when the client stays connected.
func withDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= 500 {
				log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrConnectivity), errors.Is(err, domain.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /v1/records
func (r *Router) handleRecords(w http.ResponseWriter, req *http.Request) error {
	list, err := r.svc.History(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/records/latest?student_id=
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Latest(req.Context(), req.URL.Query().Get("student_id"))
	if err != nil {
		return err
	}
	if rec == nil {
		return writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return writeJSON(w, http.StatusOK, rec)
}

type analyzeResponse struct {
	SubmissionID string         `json:"submission_id"`
	Accepted     bool           `json:"accepted"`
	Ack          *domain.Ack    `json:"ack,omitempty"`
	State        string         `json:"state"`
	Attempts     int            `json:"attempts"`
	Progress     []int          `json:"progress"`
	Record       *domain.Record `json:"record,omitempty"`
	ReportURL    string         `json:"report_url,omitempty"`
	Warning      string         `json:"warning,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// POST /v1/analyses
// Body: {"student_id","student_name","subject","score_percentage","incorrect_topics"}
// Blocks until the analysis appears, the attempts run out or the store fails.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if r.webhookErr != nil {
		return r.webhookErr
	}

	var sub domain.Submission
	if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
		return domain.Invalid(fmt.Errorf("invalid JSON body: %w", err))
	}

	progress := []int{}
	res, err := r.svc.SubmitAndWait(req.Context(), sub, func(remaining int) {
		progress = append(progress, remaining)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidSubmission) {
			middleware.RecordSubmission(false)
		}
		return err
	}
	middleware.RecordSubmission(true)
	middleware.RecordPoll(string(res.Outcome.State))

	resp := analyzeResponse{
		SubmissionID: res.SubmissionID,
		Accepted:     true,
		Ack:          res.Ack,
		State:        string(res.Outcome.State),
		Attempts:     res.Outcome.Attempts,
		Progress:     progress,
		Record:       res.Outcome.Record,
		ReportURL:    res.ReportURL,
	}
	switch res.Outcome.State {
	case appanalysis.PollExhausted:
		resp.Warning = res.Outcome.Err().Error()
	case appanalysis.PollFailed:
		resp.Error = res.Outcome.Err().Error()
	}
	return writeJSON(w, http.StatusOK, resp)
}

type formValues struct {
	StudentID   string
	StudentName string
	Subject     string
	Percentage  string
	WeakTopics  string
}

type pageView struct {
	WebhookError string
	Form         formValues

	Submitted bool
	Payload   *domain.Payload
	Ack       *domain.Ack
	Progress  []string
	Result    *domain.Record
	ReportURL string
	Warning   string
	Error     string

	Records      []*domain.Record
	RecordsError string
}

// GET /
func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	r.renderPage(w, req, &pageView{Form: formValues{Percentage: "0"}})
}

// POST /submit
func (r *Router) handleSubmitForm(w http.ResponseWriter, req *http.Request) {
	view := &pageView{Submitted: true}
	defer r.renderPage(w, req, view)

	if err := req.ParseForm(); err != nil {
		view.Error = "Error: " + err.Error()
		return
	}
	view.Form = formValues{
		StudentID:   req.PostForm.Get("student_id"),
		StudentName: req.PostForm.Get("name"),
		Subject:     req.PostForm.Get("subject"),
		Percentage:  req.PostForm.Get("percentage"),
		WeakTopics:  req.PostForm.Get("weak_topics"),
	}

	if r.webhookErr != nil {
		view.Error = "Cannot submit: Webhook URL is not configured!"
		return
	}

	pct := 0.0
	if s := strings.TrimSpace(view.Form.Percentage); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			view.Error = fmt.Sprintf("Error: invalid percentage %q", s)
			return
		}
		pct = v
	}
	sub := domain.Submission{
		StudentID:       view.Form.StudentID,
		StudentName:     view.Form.StudentName,
		Subject:         view.Form.Subject,
		ScorePercentage: pct,
		IncorrectTopics: view.Form.WeakTopics,
	}
	if norm, err := sub.Normalize(); err == nil {
		p := norm.Payload()
		view.Payload = &p
	}

	res, err := r.svc.SubmitAndWait(req.Context(), sub, func(remaining int) {
		view.Progress = append(view.Progress, fmt.Sprintf("Waiting for analysis... (Attempts remaining: %d)", remaining))
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidSubmission) {
			middleware.RecordSubmission(false)
		}
		view.Error = formError(err)
		return
	}
	middleware.RecordSubmission(true)
	middleware.RecordPoll(string(res.Outcome.State))

	view.Ack = res.Ack
	view.ReportURL = res.ReportURL
	switch res.Outcome.State {
	case appanalysis.PollSucceeded:
		view.Result = res.Outcome.Record
	case appanalysis.PollExhausted:
		view.Warning = "Analysis result not found after multiple retries. The process might take longer than expected."
	default:
		if errors.Is(res.Outcome.Err(), context.DeadlineExceeded) {
			view.Warning = "Stopped waiting for the analysis: the request time limit was reached. Check the history later."
			return
		}
		view.Error = "Database error during retry: " + res.Outcome.Err().Error()
	}
}

func formError(err error) string {
	var respErr *domain.ResponseError
	switch {
	case errors.As(err, &respErr):
		if respErr.StatusCode != http.StatusOK {
			return fmt.Sprintf("Error %d: %s", respErr.StatusCode, respErr.Body)
		}
		return "Unexpected response from workflow webhook: " + respErr.Message
	case errors.Is(err, domain.ErrConnectivity):
		return "Request error: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func (r *Router) renderPage(w http.ResponseWriter, req *http.Request, view *pageView) {
	if r.webhookErr != nil {
		view.WebhookError = r.webhookErr.Error()
	}

	// history still loads after a submit hit its deadline
	records, err := r.svc.History(context.WithoutCancel(req.Context()))
	if err != nil {
		log.Error().Err(err).Msg("error fetching records")
		view.RecordsError = err.Error()
	}
	view.Records = records

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.tmpl.ExecuteTemplate(w, "index", view); err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}
