package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/clauselens/clauselens/internal/metrics"
)

// clientIdleTTL is how long an idle client's bucket is kept.
const clientIdleTTL = 10 * time.Minute

// RateLimiter throttles requests per client IP with a token bucket each.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	now     func() time.Time
	respond Responder

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A burst below one is raised to one.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		respond: WriteEnvelope,
		clients: make(map[string]*clientBucket),
	}
}

// WithResponder sets how rejections are written and returns l.
func (l *RateLimiter) WithResponder(respond Responder) *RateLimiter {
	if respond != nil {
		l.respond = respond
	}
	return l
}

// Allow reports whether the client may make a request now.
func (l *RateLimiter) Allow(client string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > clientIdleTTL {
		for key, b := range l.clients {
			if now.Sub(b.lastSeen) > clientIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
// Run it after chi's RealIP so proxied clients are told apart.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RecordRateLimited(metrics.EndpointLabel(r))
		envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many requests").
			WithCorrelationID(GetRequestID(r.Context()))
		w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
		l.respond(w, r, envelope)
	})
}

func (l *RateLimiter) retryAfterSeconds() int {
	if l.limit <= 0 {
		return 60
	}
	secs := int(1 / float64(l.limit))
	if secs < 1 {
		return 1
	}
	return secs
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
