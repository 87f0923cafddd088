package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrTooManyConnections = errors.New("api: relay connection limit reached")
	ErrTooManyFromIP      = errors.New("api: per-address connection limit reached")
)

// RateLimitConfig configures the per-address limiter of the HTTP API.
// Relayed frames are limited per connection by the hub, not here.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // idle limiters are forgotten after twice this
}

// DefaultRateLimitConfig is sized for room listings polled by a lobby page.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

type addrLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles HTTP requests per client address.
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu    sync.Mutex
	addrs map[string]*addrLimiter

	throttled atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a limiter and starts its idle sweep.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		cfg:   cfg,
		addrs: make(map[string]*addrLimiter),
		stop:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the idle sweep.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether one more request from addr fits its budget.
func (rl *IPRateLimiter) Allow(addr string) bool {
	now := time.Now()
	rl.mu.Lock()
	a, ok := rl.addrs[addr]
	if !ok {
		a = &addrLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.addrs[addr] = a
	}
	a.lastSeen = now
	rl.mu.Unlock()

	if a.limiter.AllowN(now, 1) {
		return true
	}
	rl.throttled.Add(1)
	return false
}

// Throttled returns the number of requests refused so far.
func (rl *IPRateLimiter) Throttled() uint64 { return rl.throttled.Load() }

// Tracked returns the number of addresses with a live limiter.
func (rl *IPRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.addrs)
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *IPRateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-2 * rl.cfg.CleanupInterval)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for addr, a := range rl.addrs {
		if a.lastSeen.Before(cutoff) {
			delete(rl.addrs, addr)
		}
	}
}

// Middleware answers 429 to addresses over budget.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the remote address. Forwarded headers are only trustworthy behind a proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ConnectionLimiter accounts relay connections against a total and a
// per-address cap. Every successful Acquire must be paired with one Release.
type ConnectionLimiter struct {
	maxTotal int
	maxPerIP int

	mu    sync.Mutex
	total int
	perIP map[string]int
}

// NewConnectionLimiter creates a limiter. A cap <= 0 disables it.
func NewConnectionLimiter(maxTotal, maxPerIP int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
		perIP:    make(map[string]int),
	}
}

// Acquire reserves a connection slot for ip.
func (l *ConnectionLimiter) Acquire(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return ErrTooManyConnections
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return ErrTooManyFromIP
	}
	l.total++
	l.perIP[ip]++
	return nil
}

// Release frees a slot taken by Acquire. Releasing an address with no
// slots is a no-op.
func (l *ConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
	l.total--
}

// Active returns the number of held slots.
func (l *ConnectionLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// ActiveFrom returns the number of slots held by ip.
func (l *ConnectionLimiter) ActiveFrom(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// IsAllowedOrigin checks an Origin header against CORS-style patterns.
// A "*" in a pattern matches any run of characters ("http://localhost:*").
// Non-browser participants send no Origin and are always allowed.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	origin = strings.ToLower(origin)

	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		if pattern == "*" || pattern == origin {
			return true
		}
		if i := strings.IndexByte(pattern, '*'); i >= 0 {
			prefix, suffix := pattern[:i], pattern[i+1:]
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
