package workflowapi

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
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/metrics"
	"invoice-workflow-console/internal/modal"
)

var ErrEmptyThreadID = errors.New("thread id is required")

// Client talks to the external invoice-to-cash workflow service. It never retries:
// every call is a single request and its outcome is returned to the caller as is.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client for baseURL. A zero timeout leaves calls bounded only by ctx.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Start calls POST /workflow/start.
func (c *Client) Start(ctx context.Context, req modal.StartRequest) (*modal.Workflow, error) {
	var wf modal.Workflow
	if err := c.do(ctx, "start", http.MethodPost, "/workflow/start", req, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Resume calls POST /workflow/resume/{threadID} with the human decision.
func (c *Client) Resume(ctx context.Context, threadID, decision string) (*modal.Workflow, error) {
	if threadID == "" {
		return nil, ErrEmptyThreadID
	}
	var wf modal.Workflow
	path := "/workflow/resume/" + url.PathEscape(threadID)
	if err := c.do(ctx, "resume", http.MethodPost, path, modal.ResumeRequest{Decision: decision}, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Status calls GET /workflow/status/{threadID}.
func (c *Client) Status(ctx context.Context, threadID string) (*modal.Workflow, error) {
	if threadID == "" {
		return nil, ErrEmptyThreadID
	}
	var wf modal.Workflow
	if err := c.do(ctx, "status", http.MethodGet, "/workflow/status/"+url.PathEscape(threadID), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Steps fetches the step catalog (step letter -> description).
func (c *Client) Steps(ctx context.Context) (*modal.StepCatalog, error) {
	var catalog modal.StepCatalog
	if err := c.do(ctx, "steps", http.MethodGet, "/workflow/steps", nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// History calls GET /workflow/history/{threadID}. limit is clamped to 1..100;
// zero asks for DefaultHistoryLimit.
func (c *Client) History(ctx context.Context, threadID string, limit int) (*modal.History, error) {
	if threadID == "" {
		return nil, ErrEmptyThreadID
	}
	switch {
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit < 1:
		limit = 1
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	path := "/workflow/history/" + url.PathEscape(threadID) + "?limit=" + strconv.Itoa(limit)
	var h modal.History
	if err := c.do(ctx, "history", http.MethodGet, path, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Health reports whether the service is reachable. Only some service versions
// expose a root endpoint, so any answer below 500 counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	err := c.do(ctx, "health", http.MethodGet, "/", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	started := time.Now()
	outcome := "ok"
	defer func() {
		d := time.Since(started)
		metrics.RecordWorkflowAPIRequest(op, outcome, d)
		if err != nil {
			c.log.Warn("workflow api call failed",
				zap.String("op", op), zap.String("path", path), zap.Duration("took", d), zap.Error(err))
			return
		}
		c.log.Debug("workflow api call", zap.String("op", op), zap.String("path", path), zap.Duration("took", d))
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		outcome = "encode_error"
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors are surfaced verbatim.
		outcome = "transport_error"
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "api_error"
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "decode_error"
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
