package auth0

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/metrics"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

// EntityURL returns the Management API URL of one entity.
func (c *Client) EntityURL(entity domain.EntityType, id string) string {
	return c.baseURL + "/api/v2/" + string(entity) + "/" + url.PathEscape(id)
}

// Delete removes one entity. It returns the response status; any non-2xx
// status comes back as a *StatusError, transport failures as plain errors.
func (c *Client) Delete(ctx context.Context, entity domain.EntityType, id, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.EntityURL(entity, id), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	metrics.DeleteLatency.WithLabelValues(string(entity)).Observe(latency.Seconds())
	if err != nil {
		c.record(0, latency)
		return 0, fmt.Errorf("delete %s: %w", id, err)
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, latency)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, &StatusError{
		Code:       resp.StatusCode,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header, time.Now()),
	}
}
