package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alfagnish/users-api/internal/apperr"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map. Once reached, buckets that have
// refilled completely are dropped, and if none can be dropped new clients
// share a single overflow bucket.
const maxTrackedClients = 10000

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP. The client IP is the
// request's RemoteAddr, so forwarding headers only count when RealIP ran
// before it.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientBucket
	overflow   *rate.Limiter
	maxClients int
	rate       rate.Limit
	burst      int
	now        func() time.Time
	errs       *ErrorHandler
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. Rejections go through errs.
func NewRateLimiter(rps float64, burst int, errs *ErrorHandler) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*clientBucket),
		overflow:   rate.NewLimiter(rate.Limit(rps), burst),
		maxClients: maxTrackedClients,
		rate:       rate.Limit(rps),
		burst:      burst,
		now:        time.Now,
		errs:       errs,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if b, ok := rl.clients[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	if len(rl.clients) >= rl.maxClients {
		rl.evictRefilled(now)
		if len(rl.clients) >= rl.maxClients {
			return rl.overflow
		}
	}
	b := &clientBucket{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: now}
	rl.clients[key] = b
	return b.limiter
}

// evictRefilled drops buckets idle long enough to be full again; a fresh
// bucket behaves the same, so dropping them never grants extra requests.
// Requires rl.mu held.
func (rl *RateLimiter) evictRefilled(now time.Time) {
	refill := rl.refillTime()
	for key, b := range rl.clients {
		if now.Sub(b.lastSeen) >= refill {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) refillTime() time.Duration {
	if rl.rate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(float64(rl.burst) / float64(rl.rate) * float64(time.Second))
}

// Handler returns the rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientKey(r)).Allow() {
			w.Header().Set("Retry-After", retryAfter(rl.rate))
			rl.errs.Respond(w, r, apperr.TooManyRequests("Demasiadas solicitudes, intenta más tarde"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfter is the whole number of seconds until one token is available.
func retryAfter(l rate.Limit) string {
	if l <= 0 {
		return "1"
	}
	secs := int(time.Duration(float64(time.Second)/float64(l)).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
