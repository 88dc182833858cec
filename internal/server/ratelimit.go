package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/logging"
)

// maxBlock caps the exponential login block.
const maxBlock = 24 * time.Hour

// withDefaults fills unset rate limit fields.
func withDefaults(c config.RateLimitConfig) config.RateLimitConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = config.DefaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.BlockAfter <= 0 {
		c.BlockAfter = config.DefaultBlockAfter
	}
	if c.BlockTime <= 0 {
		c.BlockTime = 5 * time.Minute
	}
	return c
}

// rateLimiter limits POST /tokens per client IP with a sliding window, and
// blocks IPs that keep failing for exponentially longer periods.
type rateLimiter struct {
	mu     sync.Mutex
	config config.RateLimitConfig
	now    func() time.Time
	log    *logging.Logger

	// attempts tracks timestamps of attempts per IP
	attempts map[string][]time.Time
	// failures counts consecutive failed logins per IP
	failures map[string]int
	// blocked maps an IP to when its block expires
	blocked map[string]time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		config:   withDefaults(cfg),
		now:      time.Now,
		log:      logging.With("component", "ratelimit"),
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
	}
}

// checkResult is the outcome of a rate limit check.
type checkResult struct {
	Allowed    bool
	RetryAfter time.Duration
	// Blocked is true when the rejection is due to repeated failures rather
	// than request volume.
	Blocked bool
	Reason  string
}

// check records an attempt from ip if it is allowed.
func (rl *rateLimiter) check(ip string) checkResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if expiry, ok := rl.blocked[ip]; ok {
		if now.Before(expiry) {
			return checkResult{
				RetryAfter: expiry.Sub(now),
				Blocked:    true,
				Reason:     "too many failed attempts",
			}
		}
		delete(rl.blocked, ip)
	}

	recent := rl.prune(ip, now)
	if len(recent) >= rl.config.MaxAttempts {
		retryAfter := recent[0].Add(rl.config.Window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return checkResult{
			RetryAfter: retryAfter,
			Reason:     "rate limit exceeded",
		}
	}

	rl.attempts[ip] = append(recent, now)
	return checkResult{Allowed: true}
}

// prune drops attempts older than the window. Must be called with rl.mu held.
func (rl *rateLimiter) prune(ip string, now time.Time) []time.Time {
	windowStart := now.Add(-rl.config.Window)
	kept := rl.attempts[ip][:0]
	for _, ts := range rl.attempts[ip] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = kept
	return kept
}

// recordSuccess clears the failure history of ip.
func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.failures, ip)
	delete(rl.blocked, ip)
}

// recordFailure counts a failed login. Every BlockAfter consecutive failures
// block the IP, each block twice as long as the previous one.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.failures[ip]++
	n := rl.failures[ip]
	if n < rl.config.BlockAfter {
		return
	}

	blocks := (n - rl.config.BlockAfter) / rl.config.BlockAfter
	d := maxBlock
	if blocks < 16 {
		d = min(rl.config.BlockTime*time.Duration(1<<blocks), maxBlock)
	}

	rl.blocked[ip] = rl.now().Add(d)
	rl.log.Warn("blocking ip", "ip", ip, "failures", n, "duration", d)
}

// cleanup removes expired entries. Called periodically by the server.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip := range rl.attempts {
		rl.prune(ip, now)
	}
	for ip, expiry := range rl.blocked {
		if now.After(expiry) {
			delete(rl.blocked, ip)
		}
	}
	// failure counts survive while the IP is blocked or still active
	for ip := range rl.failures {
		_, isBlocked := rl.blocked[ip]
		_, isActive := rl.attempts[ip]
		if !isBlocked && !isActive {
			delete(rl.failures, ip)
		}
	}
}

// extractIP returns the client IP, preferring the first X-Forwarded-For
// entry, then X-Real-IP, then the connection's remote address.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
