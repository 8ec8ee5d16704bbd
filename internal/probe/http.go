package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// HTTPProber issues a single GET and compares the response status against
// the expected one. The body is never consumed.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates an HTTP prober with the given per-probe timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			// Redirect chains would hide the endpoint's own status.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe executes one GET against detail.URL.
func (p *HTTPProber) Probe(ctx context.Context, detail *model.HTTPDetail) Outcome {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detail.URL, nil)
	if err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: fmt.Sprintf("invalid request: %v", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Outcome{OK: false, Latency: time.Since(start), Detail: fmt.Sprintf("request failed: %v", err)}
	}
	resp.Body.Close()

	latency := time.Since(start)
	if resp.StatusCode != detail.ExpectedStatus {
		return Outcome{
			OK:      false,
			Latency: latency,
			Detail:  fmt.Sprintf("HTTP %d (expected %d)", resp.StatusCode, detail.ExpectedStatus),
		}
	}
	return Outcome{OK: true, Latency: latency, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
}
