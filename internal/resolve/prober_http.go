package resolve

import (
	"context"

	"github.com/e-roy/find-a-flight-school-sub001/pkg/probe"
)

// HTTPProber adapts the homepage fetcher to the resolver's Prober interface.
type HTTPProber struct {
	prober *probe.Prober
}

// NewHTTPProber wraps a configured fetcher.
func NewHTTPProber(p *probe.Prober) *HTTPProber {
	return &HTTPProber{prober: p}
}

// Probe fetches the candidate domain's homepage.
func (h *HTTPProber) Probe(ctx context.Context, domain string) (*ProbeResult, error) {
	res, err := h.prober.Fetch(ctx, domain)
	if err != nil {
		return nil, err
	}
	return &ProbeResult{Live: res.Live, Title: res.Title, Body: res.Body}, nil
}
