// Package extractor is the HTTP client for the external structured-extraction
// service that turns a flight school website into typed listing fields.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the extraction API.
const defaultBaseURL = "https://api.siteharvest.dev/v1"

// Client defines the extraction API operations.
type Client interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
}

// ExtractRequest is the body for POST /extract.
type ExtractRequest struct {
	Domain string   `json:"domain"`
	Fields []string `json:"fields,omitempty"`
}

// ExtractResponse is the response from POST /extract. Fields is a flat object
// keyed by requested field name; unextractable fields come back null.
type ExtractResponse struct {
	Success    bool            `json:"success"`
	Fields     json.RawMessage `json:"fields"`
	Confidence float64         `json:"confidence"`
}

// APIError is returned when the extraction API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("extractor: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new extraction client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extractor: rate limit wait")
	}

	var resp ExtractResponse
	if err := c.post(ctx, "/extract", req, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("extractor: extract %s", req.Domain))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
	}
	return nil
}
