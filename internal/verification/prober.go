package verification

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prober reports whether a URL answers a HEAD request with 2xx or 3xx.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber issues bounded HEAD requests. Redirects are not followed: a
// 3xx from the profile host already proves the profile path resolves.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", "intromarket-verifier/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}
