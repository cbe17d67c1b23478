// Package ratelimit throttles requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/logging"
)

// Limiter manages one token bucket per host.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the URL's host or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if err := l.bucket(hostOf(rawURL)).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// Fetcher wraps another election.Fetcher and waits on the limiter before each request.
type Fetcher struct {
	next    election.Fetcher
	limiter *Limiter
	logger  *zap.Logger
}

// NewFetcher decorates next with limiter.
func NewFetcher(next election.Fetcher, limiter *Limiter, logger *zap.Logger) *Fetcher {
	logger = logging.OrNop(logger)
	return &Fetcher{next: next, limiter: limiter, logger: logger}
}

// Fetch waits for a token, then delegates. An aborted wait is not retryable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (election.Page, error) {
	start := time.Now()
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return election.Page{}, &election.FetchError{Kind: election.KindUnknown, URL: rawURL, Err: err}
	}
	if waited := time.Since(start); waited > time.Millisecond {
		f.logger.Debug("rate limited", zap.String("url", rawURL), zap.Duration("waited", waited))
	}
	return f.next.Fetch(ctx, rawURL)
}
