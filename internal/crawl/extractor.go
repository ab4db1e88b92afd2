package crawl

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/extractor"
)

// APIExtractor adapts the extraction service client to the worker's
// Extractor interface, requesting the controlled vocabulary's fields and
// retrying transient upstream failures.
type APIExtractor struct {
	client extractor.Client
	fields []string
	retry  resilience.RetryConfig
}

// NewAPIExtractor wires the extraction client into the worker.
func NewAPIExtractor(client extractor.Client) *APIExtractor {
	fields := make([]string, 0, len(model.FactVocabulary))
	for key := range model.FactVocabulary {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("extractor", "extract")

	return &APIExtractor{client: client, fields: fields, retry: cfg}
}

// Extract runs one extraction call. 429/5xx responses are wrapped transient
// and retried; a response with success=false is a permanent failure for this
// attempt and propagates to the queue entry's last_error.
func (e *APIExtractor) Extract(ctx context.Context, domain string) (*Extraction, error) {
	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*extractor.ExtractResponse, error) {
		resp, err := e.client.Extract(ctx, extractor.ExtractRequest{
			Domain: domain,
			Fields: e.fields,
		})
		if err != nil {
			var apiErr *extractor.APIError
			if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
				return nil, resilience.NewTransientError(err, apiErr.StatusCode)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, eris.Errorf("crawl: extraction unsuccessful for %s", domain)
	}
	return &Extraction{
		Payload:    []byte(resp.Fields),
		Confidence: resp.Confidence,
	}, nil
}
