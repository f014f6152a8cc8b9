package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"github.com/jonboulle/clockwork"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max requests per client per Window. Zero disables limiting.
	Max    int
	Window time.Duration
	// Methods limits counting to these methods; empty counts every request.
	Methods []string
	// Key identifies the client. Defaults to ClientIP.
	Key func(*http.Request) string
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// window is a pair of adjacent fixed windows; the previous one is weighted
// by how much of it still overlaps the sliding window.
type window struct {
	start time.Time
	curr  int
	prev  int
}

type limiter struct {
	max    int
	size   time.Duration
	clock  clockwork.Clock
	mu     sync.Mutex
	counts map[string]*window
}

// take records a request for key at now and reports whether it is allowed
// and how many requests are left.
func (l *limiter) take(key string, now time.Time) (left int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w := l.counts[key]
	switch {
	case w == nil:
		w = &window{start: start}
		l.counts[key] = w
	case start.Sub(w.start) >= 2*l.size:
		*w = window{start: start}
	case start.After(w.start):
		*w = window{start: start, prev: w.curr}
	}

	overlap := 1 - float64(now.Sub(start))/float64(l.size)
	used := int(float64(w.prev)*overlap) + w.curr
	reset = start.Add(l.size)
	if used >= l.max {
		return 0, reset, false
	}
	w.curr++
	return max(l.max-used-1, 0), reset, true
}

// evict drops clients idle for two windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.counts {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.counts, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := l.clock.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.evict(l.clock.Now())
		}
	}
}

// RateLimit enforces a per-client sliding window limit, answering 429 with
// a JSON body once it is exceeded. Idle clients are evicted until ctx is
// done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	l := &limiter{
		max:    cfg.Max,
		size:   cfg.Window,
		clock:  cfg.Clock,
		counts: make(map[string]*window),
	}
	go l.evictLoop(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(cfg.Methods) > 0 && !slices.Contains(cfg.Methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			now := l.clock.Now()
			left, reset, ok := l.take(cfg.Key(r), now)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := int((reset.Sub(now) + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(retry))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
				e.Field("message", func(e *jx.Encoder) { e.Str("rate limit exceeded") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
