package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. Each bucket holds
// requests tokens and refills them evenly over window.
type RateLimiter struct {
	requests int
	window   time.Duration
	limit    rate.Limit
	clients  map[string]*client
	mu       sync.Mutex
	now      func() time.Time

	trusted []*net.IPNet

	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 100 // Default
	}
	if windowSeconds <= 0 {
		windowSeconds = 60 // Default
	}

	window := time.Duration(windowSeconds) * time.Second
	return &RateLimiter{
		requests: requests,
		window:   window,
		limit:    rate.Every(window / time.Duration(requests)),
		clients:  make(map[string]*client),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// TrustProxies sets the proxies whose X-Forwarded-For and X-Real-IP headers
// are believed. Entries are IPs or CIDR blocks. Nothing is applied if any
// entry fails to parse.
func (rl *RateLimiter) TrustProxies(proxies []string) error {
	nets := make([]*net.IPNet, 0, len(proxies))
	for _, p := range proxies {
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 8 * len(ip.To16())
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		nets = append(nets, n)
	}
	rl.trusted = nets
	return nil
}

// StartSweeper drops idle buckets every interval until Stop is called.
func (rl *RateLimiter) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep()
			case <-rl.stop:
				return
			}
		}
	}()
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Sweep drops buckets idle for longer than a window. Those are full again,
// so forgetting them changes nothing.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.window {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.requests)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Allow takes a token for key. It reports whether the request may proceed,
// how many whole tokens are left, and how long until the next token (when
// denied) or a full bucket (when allowed).
func (rl *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	now := rl.now()
	limiter := rl.bucket(key, now)

	res := limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		// Give the token back; a rejected request must not push the wait out further
		res.CancelAt(now)
		return false, 0, delay
	}

	tokens := limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	perToken := rl.window / time.Duration(rl.requests)
	reset := time.Duration((float64(rl.requests) - tokens) * float64(perToken))
	return true, remaining, reset
}

// Middleware limits requests per authenticated user, falling back to the
// client IP for anonymous requests. Place it after Authenticate.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + rl.clientIP(r)
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			key = "user:" + userID.String()
		}

		allowed, remaining, wait := rl.Allow(key)
		seconds := int64(math.Ceil(wait.Round(time.Millisecond).Seconds()))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Unix()+seconds, 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) isTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range rl.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address, or the forwarded client address when
// the peer is a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	remote := peerIP(r)
	if !rl.isTrusted(net.ParseIP(remote)) {
		return remote
	}

	// Walk X-Forwarded-For right to left; the first hop we don't trust is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if ip := net.ParseIP(hop); ip != nil && !rl.isTrusted(ip) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return remote
}

// peerIP is the address of the directly connected peer, without the port.
func peerIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
