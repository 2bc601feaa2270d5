package fetcher

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter spaces requests to the same upstream host. A nil limiter
// never waits.
type HostRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	interval time.Duration
}

// NewHostRateLimiter returns nil when interval is not positive.
func NewHostRateLimiter(interval time.Duration) *HostRateLimiter {
	if interval <= 0 {
		return nil
	}
	return &HostRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

func (h *HostRateLimiter) WaitForHost(ctx context.Context, urlStr string) error {
	if h == nil {
		return nil
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	host := parsedURL.Host
	if host == "" {
		return &url.Error{Op: "parse", URL: urlStr, Err: errors.New("missing host in URL")}
	}

	return h.getLimiterForHost(host).Wait(ctx)
}

func (h *HostRateLimiter) getLimiterForHost(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, exists := h.limiters[host]
	h.mu.RUnlock()

	if exists {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if limiter, exists := h.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(h.interval), 1)
	h.limiters[host] = limiter
	return limiter
}
