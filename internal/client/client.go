// Package client is the HTTP client of the grading API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/internos/internal/domain/types"
)

// RequestIDHeader carries the per-call request id.
const RequestIDHeader = "X-Request-ID"

// Sentinel kinds for client errors.
var (
	ErrRequest  = errors.New("request failed")
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrRejected = errors.New("rejected")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
}

// Unwrap classifies the status code.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrRejected
	}
}

// Client talks to one service instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Submission grades inline and can take as long as the test run.
		http: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Tickets lists the catalog.
func (c *Client) Tickets(ctx context.Context) ([]types.Ticket, error) {
	var out []types.Ticket
	return out, c.do(ctx, http.MethodGet, "/tickets", nil, &out)
}

// StartTicket starts an attempt.
func (c *Client) StartTicket(ctx context.Context, req types.StartRequest) (types.StartResponse, error) {
	var out types.StartResponse
	return out, c.do(ctx, http.MethodPost, "/tickets/start", req, &out)
}

// Submit submits and grades an attempt.
func (c *Client) Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error) {
	var out types.SubmitResponse
	return out, c.do(ctx, http.MethodPost, "/tickets/submit", req, &out)
}

// AttemptMetrics returns the stored rows of an attempt.
func (c *Client) AttemptMetrics(ctx context.Context, attemptID int64) (types.AttemptMetrics, error) {
	var out types.AttemptMetrics
	path := "/attempts/" + strconv.FormatInt(attemptID, 10) + "/metrics"
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// RecruiterSnapshot builds the snapshot of handle.
func (c *Client) RecruiterSnapshot(ctx context.Context, handle string) (types.RecruiterView, error) {
	var out types.RecruiterView
	return out, c.do(ctx, http.MethodGet, "/recruiter/"+url.PathEscape(handle), nil, &out)
}

// ScoreSignals scores a signal map on the server.
func (c *Client) ScoreSignals(ctx context.Context, req types.ScoreRequest) (types.ScoreResponse, error) {
	var out types.ScoreResponse
	return out, c.do(ctx, http.MethodPost, "/score", req, &out)
}

// Stats returns the service counters.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	return out, c.do(ctx, http.MethodGet, "/stats", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal request body: %w", ErrRequest, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrRequest, err)
	}
	rid := uuid.NewString()
	req.Header.Set(RequestIDHeader, rid)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrRequest, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: rid}
		var e types.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Code != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		} else {
			apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRequest, err)
	}
	return nil
}
