package httpcache

import (
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// The site rate-limits anonymous scrapers well below one request per second.
var globalRateLimiter = newDomainRateLimiter(1100 * time.Millisecond)

// domainRateLimiter enforces a minimum delay between requests to the same
// domain. Safe for concurrent use.
type domainRateLimiter struct {
	lastRequest sync.Map // map[string]time.Time
	mu          sync.Map // map[string]*sync.Mutex
	minDelay    time.Duration
}

func newDomainRateLimiter(minDelay time.Duration) *domainRateLimiter {
	return &domainRateLimiter{minDelay: minDelay}
}

// Wait blocks until at least minDelay has passed since the last request to
// the URL's domain.
func (r *domainRateLimiter) Wait(rawURL string, logger *slog.Logger) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}
	domain := u.Host

	muI, _ := r.mu.LoadOrStore(domain, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	if lastI, ok := r.lastRequest.Load(domain); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < r.minDelay {
				waitTime := r.minDelay - elapsed
				if logger != nil {
					logger.Debug("rate limit pause", "domain", domain, "wait", waitTime.Round(time.Millisecond))
				}
				time.Sleep(waitTime)
			}
		}
	}

	r.lastRequest.Store(domain, time.Now())
}
