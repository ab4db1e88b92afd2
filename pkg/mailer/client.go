// Package mailer is the HTTP client for the transactional email relay that
// delivers claim verification tokens.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.mailrelay.dev/v1"

// Client sends transactional email.
type Client interface {
	Send(ctx context.Context, to, subject, body string) error
}

// APIError is returned when the relay responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailer: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	from    string
	baseURL string
	http    *http.Client
}

// NewClient creates a mail relay client sending from the given address.
func NewClient(apiKey, from string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		from:    from,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (c *httpClient) Send(ctx context.Context, to, subject, body string) error {
	buf, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return eris.Wrap(err, "mailer: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "mailer: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "mailer: execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return nil
}
