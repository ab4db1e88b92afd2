// Package probe fetches candidate domain homepages for the resolver's
// corroboration checks.
package probe

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a homepage is read; enough for the title and
// contact details without buffering whole media-heavy pages.
const maxBodyBytes = 256 * 1024

// Result is what a probe learned about a domain.
type Result struct {
	Live  bool
	Title string
	Body  string
}

// Option configures the prober.
type Option func(*Prober)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) {
		p.http = hc
	}
}

// WithRateLimit caps probes per second.
func WithRateLimit(rps float64) Option {
	return func(p *Prober) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.http.Timeout = d
		}
	}
}

// Prober fetches homepages over plain HTTPS with an HTTP fallback. A domain
// that refuses connections or returns an error status is dead (Live=false),
// not an error; only transport-level failures after the fallback propagate.
type Prober struct {
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)

// Fetch probes a domain's homepage.
func (p *Prober) Fetch(ctx context.Context, domain string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "probe: rate limit wait")
	}

	body, err := p.get(ctx, "https://"+domain)
	if err != nil {
		body, err = p.get(ctx, "http://"+domain)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "probe: interrupted")
		}
		// Unresolvable or refusing hosts are dead candidates, not failures.
		return &Result{Live: false}, nil
	}
	if body == "" {
		return &Result{Live: false}, nil
	}

	result := &Result{Live: true, Body: stripTags(body)}
	if m := titleRe.FindStringSubmatch(body); m != nil {
		result.Title = strings.TrimSpace(m[1])
	}
	return result, nil
}

// get returns the page body, or an error for non-2xx and transport failures.
func (p *Prober) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "probe: create request")
	}
	req.Header.Set("User-Agent", "fsd-probe/1.0")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "probe: execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("probe: HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "probe: read body")
	}
	return string(data), nil
}

func stripTags(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}
