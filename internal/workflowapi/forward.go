package workflowapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/metrics"
)

const maxForwardBody = 8 << 20

type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forward relays a request to the workflow service without interpreting it.
// path is relative to the base URL and must start with "/".
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType string) (*RawResponse, error) {
	started := time.Now()
	target := c.baseURL + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordWorkflowAPIRequest("forward", "transport_error", time.Since(started))
		c.log.Warn("workflow api forward failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxForwardBody))
	if err != nil {
		metrics.RecordWorkflowAPIRequest("forward", "transport_error", time.Since(started))
		return nil, fmt.Errorf("failed to read forward response: %w", err)
	}

	outcome := "ok"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "api_error"
	}
	metrics.RecordWorkflowAPIRequest("forward", outcome, time.Since(started))

	return &RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}
