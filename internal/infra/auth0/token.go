package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/metrics"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// TokenRequest holds the client credentials grant parameters.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
	Scope        string `json:"scope,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// AcquireToken exchanges client credentials for a Management API access token.
// Every failure wraps domain.ErrAuth.
func (c *Client) AcquireToken(ctx context.Context, tr TokenRequest) (string, error) {
	if tr.Audience == "" {
		tr.Audience = c.Audience()
	}

	body, err := json.Marshal(struct {
		TokenRequest
		GrantType string `json:"grant_type"`
	}{tr, "client_credentials"})
	if err != nil {
		return "", c.authFailed(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", c.authFailed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.authFailed(fmt.Errorf("token request: %w", err))
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.authFailed(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.authFailed(&StatusError{Code: resp.StatusCode, Body: string(data)})
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", c.authFailed(fmt.Errorf("parse response: %w", err))
	}
	if tok.AccessToken == "" {
		return "", c.authFailed(fmt.Errorf("response has no access_token"))
	}

	metrics.TokenRequests.WithLabelValues("success").Inc()
	return tok.AccessToken, nil
}

func (c *Client) authFailed(err error) error {
	metrics.TokenRequests.WithLabelValues("failure").Inc()
	return fmt.Errorf("%w: %w", domain.ErrAuth, err)
}
