// Package renderer provides a client for the HTML/PDF render service.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/advisor-cli/internal/resilience"
)

// Client defines the render service operations.
type Client interface {
	// RenderHTML renders a report template against the given context
	// and returns the HTML document.
	RenderHTML(ctx context.Context, req RenderRequest) ([]byte, error)
	// HTMLToPDF converts a rendered HTML document to PDF.
	HTMLToPDF(ctx context.Context, html []byte) ([]byte, error)
}

// RenderRequest is the payload sent to the render service.
type RenderRequest struct {
	ReportType string `json:"report_type"`
	Context    any    `json:"context"`
}

// Option configures the renderer client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithMaxRetries bounds retry attempts on transient failures.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

type httpClient struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a render service client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(2, 2),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RenderHTML(ctx context.Context, req RenderRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "renderer: marshal request")
	}

	body, err := c.post(ctx, c.baseURL+"/render", "application/json", payload)
	return body, eris.Wrap(err, "renderer: render html")
}

func (c *httpClient) HTMLToPDF(ctx context.Context, html []byte) ([]byte, error) {
	body, err := c.post(ctx, c.baseURL+"/pdf", "text/html", html)
	return body, eris.Wrap(err, "renderer: html to pdf")
}

// post sends the payload with rate limiting and transient-failure retries.
func (c *httpClient) post(ctx context.Context, url, contentType string, payload []byte) ([]byte, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    c.maxRetries,
		InitialBackoff: c.backoff,
		ShouldRetry:    resilience.IsTransient,
		OnRetry:        resilience.RetryLogger("renderer", url),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &resilience.TransientError{Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &resilience.TransientError{Err: err}
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, &resilience.TransientError{Err: err, StatusCode: resp.StatusCode}
			}
			return nil, err
		}
		return body, nil
	})
}
