package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// maxBodyBytes caps how much of a webhook reply is kept for error reporting.
const maxBodyBytes = 1 << 20

// Client posts submissions to the workflow webhook. One request per call, no retry.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(cfg *config.Webhook) *Client {
	return &Client{
		url:  strings.TrimSpace(cfg.URL),
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Submit(ctx context.Context, s domain.Submission) (*domain.Ack, error) {
	if c.url == "" {
		return nil, goerr.Wrap(domain.ErrConfiguration, "cannot submit: webhook URL is not configured")
	}

	body, err := json.Marshal(s.Payload())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode submission", goerr.V("student_id", s.StudentID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(domain.ErrConfiguration, "invalid webhook request", goerr.V("error", err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "request error", goerr.V("student_id", s.StudentID))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to read webhook response", goerr.V("status", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ResponseError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ResponseError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	msg, _ := decoded["message"].(string)
	if msg != domain.StartedMessage {
		return nil, &domain.ResponseError{StatusCode: resp.StatusCode, Message: msg, Body: string(raw)}
	}

	return &domain.Ack{StatusCode: resp.StatusCode, Message: msg, Body: decoded}, nil
}
