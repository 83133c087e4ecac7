package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's limiter survives without requests.
const limiterIdle = 10 * time.Minute

// RateLimiter bounds POST requests per client IP. Reads are not limited.
type RateLimiter struct {
	mu       sync.Mutex
	perMin   int
	burst    int
	clients  map[string]*clientLimiter
	now      func() time.Time
	lastScan time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows perMinute POST requests per client with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = max(1, perMinute/10)
	}
	return &RateLimiter{
		perMin:  perMinute,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Wrap returns next guarded by the limiter.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	if rl == nil || rl.perMin <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		lim := rl.limiter(clientIP(r))
		if !lim.Allow() {
			retry := time.Duration(float64(time.Minute) / float64(rl.perMin))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastScan) > limiterIdle {
		for k, c := range rl.clients {
			if now.Sub(c.seen) > limiterIdle {
				delete(rl.clients, k)
			}
		}
		rl.lastScan = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rate.Limit(float64(rl.perMin)/60), rl.burst)}
		rl.clients[key] = c
	}
	c.seen = now
	return c.lim
}

// Clients returns how many clients are tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
