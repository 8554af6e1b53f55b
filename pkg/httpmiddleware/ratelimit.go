package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max    int
	Window time.Duration
	// MaxKeys bounds the number of tracked clients. The least recently seen
	// client is forgotten first. Defaults to 10000.
	MaxKeys int
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window approximates a sliding window from two fixed ones: the previous
// window's count is weighted by how much of it still overlaps.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type rateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	now     func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &rateLimiter{
		cfg: cfg,
		// A window untouched for two periods carries no weight.
		windows: expirable.NewLRU[string, *window](cfg.MaxKeys, nil, 2*cfg.Window),
		now:     time.Now,
	}
}

func (rl *rateLimiter) take(key string) (remaining int, reset time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	start := now.Truncate(rl.cfg.Window)
	w, found := rl.windows.Get(key)
	switch {
	case !found:
		w = &window{start: start}
	case start.Sub(w.start) >= 2*rl.cfg.Window:
		*w = window{start: start}
	case start.After(w.start):
		*w = window{start: start, prev: w.curr}
	}
	rl.windows.Add(key, w)

	elapsed := now.Sub(w.start).Seconds() / rl.cfg.Window.Seconds()
	used := w.prev*(1-elapsed) + w.curr
	reset = w.start.Add(rl.cfg.Window)
	if used >= float64(rl.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	return max(0, int(float64(rl.cfg.Max)-used-1)), reset, true
}

// RateLimit returns a middleware enforcing a per-client request rate. Every
// response carries X-RateLimit-* headers; rejected requests get 429 with a
// Retry-After header.
func RateLimit(cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := rl.take(rl.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(0, reset.Sub(rl.now()).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait))))
				WriteDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
