package httpclient

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"newsly/internal/core"
)

// hostLimiter spaces requests per host so parallel extraction does not
// hammer a single news site.
type hostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	interval time.Duration
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

func (h *hostLimiter) wait(ctx context.Context, urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return core.WrapError(core.KindNetworkError, "invalid request URL", err)
	}
	if parsed.Host == "" {
		return core.WrapError(core.KindNetworkError, "invalid request URL", errors.New("missing host in URL"))
	}
	if err := h.forHost(parsed.Host).Wait(ctx); err != nil {
		// rate.Wait fails only when the ctx is done or its deadline cannot
		// accommodate the politeness interval.
		return core.WrapError(core.KindTimeout, "host politeness wait timed out", err)
	}
	return nil
}

func (h *hostLimiter) forHost(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double-check pattern
	if limiter, ok := h.limiters[host]; ok {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(h.interval), 1)
	h.limiters[host] = limiter
	return limiter
}
