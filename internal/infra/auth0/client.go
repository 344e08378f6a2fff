// Package auth0 talks to an Auth0 tenant: it acquires a Management API token
// with the client credentials grant and deletes entities through /api/v2.
package auth0

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client bound to one tenant.
type Client struct {
	domain     string
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	stats Stats
}

// Stats summarises the calls made by a Client.
type Stats struct {
	Requests      int
	Successes     int
	RateLimited   int
	Failures      int
	TotalLatency  time.Duration
	LastSuccessAt time.Time
	LastFailureAt time.Time
}

// AverageLatency returns the mean latency over all requests.
func (s Stats) AverageLatency() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Requests)
}

// NewClient creates a client for https://{tenantDomain}.
func NewClient(tenantDomain string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(tenantDomain, "https://"+tenantDomain, timeout)
}

// NewClientWithBaseURL creates a client that sends requests to baseURL instead
// of the tenant domain, e.g. a custom domain or a local proxy.
func NewClientWithBaseURL(tenantDomain, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		domain:  tenantDomain,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Domain returns the tenant domain.
func (c *Client) Domain() string {
	return c.domain
}

// Audience returns the Management API audience for the tenant.
func (c *Client) Audience() string {
	return "https://" + c.domain + "/api/v2/"
}

// Stats returns a snapshot of the call statistics.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) record(status int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Requests++
	c.stats.TotalLatency += latency

	switch {
	case status >= 200 && status < 300:
		c.stats.Successes++
		c.stats.LastSuccessAt = time.Now()
	case status == http.StatusTooManyRequests:
		c.stats.RateLimited++
		c.stats.LastFailureAt = time.Now()
	default:
		c.stats.Failures++
		c.stats.LastFailureAt = time.Now()
	}
}
