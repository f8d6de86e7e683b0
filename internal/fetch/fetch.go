// Package fetch retrieves a URL's bytes through an outbound proxy,
// tolerating the truncated-transfer errors that heterogeneous upstream
// hosts are prone to (C3, §4.3).
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/simon987/irarchives-go/internal/ferrors"
)

const (
	defaultTimeout = 600 * time.Second
	maxRetries     = 3
)

// Fetcher retrieves URL bytes. Each ingest worker owns its own Fetcher
// so its connection pool is private (§4.9, §9 "per-thread HTTP
// client").
type Fetcher struct {
	client *http.Client
}

// New builds a Fetcher routed through proxyURL (may be empty for no
// proxy). Peer certificate verification is disabled because upstream
// targets are heterogeneous and often mis-configured (§4.3).
func New(proxyURL string) (*Fetcher, error) {
	transport := &http.Transport{
		TLSClientConfig: insecureTLSConfig(),
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return nil // follow redirects, matching the source's default behavior
			},
		},
	}, nil
}

// Fetch retrieves the bytes at rawURL. On a transport-level truncation
// error it retries up to maxRetries times. A non-200 response whose
// body contains the literal substring "404" is treated as a not-found
// FetchError (so callers that inspect ferrors.IsNotFound can skip
// silently); any other non-200 response is a fatal FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		body, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if !isTruncation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, ferrors.NewFetchError("fetch", rawURL, 0, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ferrors.NewFetchError("new_request", rawURL, 0, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err // may be a truncation error; caller classifies via isTruncation
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(string(data), "404") {
			return nil, ferrors.NewFetchError("fetch", rawURL, http.StatusNotFound, nil)
		}
		return nil, ferrors.NewFetchError("fetch", rawURL, resp.StatusCode, nil)
	}

	return data, nil
}

// isTruncation reports whether err looks like a transport-level
// truncated-transfer error (§4.3: "transfer closed").
func isTruncation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected EOF") ||
		strings.Contains(msg, "transfer closed") ||
		strings.Contains(msg, "connection reset")
}
