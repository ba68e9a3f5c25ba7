// Package httpclient provides the shared outbound HTTP client used by the
// feed fetcher and the article extractor: realistic rotating user agents,
// news-friendly Accept headers, a redirect cap and per-host politeness.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"newsly/internal/core"
)

// maxBodyBytes caps how much of a response is read into memory. News pages
// and feeds are far below this; anything larger is not an article.
const maxBodyBytes = 10 << 20

// userAgents is rotated across requests so that a burst of fetches does not
// present a single synthetic fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

const acceptFeeds = "application/rss+xml, application/xml, text/xml, */*"

// Response is the raw result of one GET. Body is undecoded bytes so callers
// can run their own charset detection.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Getter is the outbound HTTP contract consumed by the pipeline stages.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Options configures a Client.
type Options struct {
	HostInterval   time.Duration // Minimum spacing between requests to one host
	MaxRedirects   int           // Redirect cap, default 5
	AcceptLanguage string        // Accept-Language header value
}

// Client is the default Getter backed by net/http.
type Client struct {
	http           *http.Client
	limiter        *hostLimiter
	acceptLanguage string
	uaCounter      atomic.Uint64
}

// New builds a Client with the politeness interval and redirect cap applied.
func New(opts Options) *Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	acceptLanguage := opts.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = "ko-KR,ko;q=0.9,en;q=0.8"
	}
	interval := opts.HostInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &Client{
		http: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		limiter:        newHostLimiter(interval),
		acceptLanguage: acceptLanguage,
	}
}

// Get performs one GET with rotated user agent and shared headers. The
// caller's headers win over the defaults. Deadlines come from ctx.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	if err := c.limiter.wait(ctx, url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.KindNetworkError, "invalid request URL", err)
	}

	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", acceptFeeds)
	req.Header.Set("Accept-Language", c.acceptLanguage)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.WrapError(core.KindTimeout, "request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, core.WrapError(core.KindTimeout, "request canceled", err)
		}
		return nil, core.WrapError(core.KindNetworkError, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.WrapError(core.KindTimeout, "response read timed out", err)
		}
		return nil, core.WrapError(core.KindNetworkError, "response read failed", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

func (c *Client) nextUserAgent() string {
	n := c.uaCounter.Add(1)
	return userAgents[int(n)%len(userAgents)]
}
