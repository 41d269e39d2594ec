package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/reflections-auth/internal/console/handler"
)

// ipLimiter — token bucket на каждый IP для эндпоинтов /auth (защита от перебора паролей).
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	entries map[string]*bucket
	now     func() time.Time

	// Очистка неактивных IP не чаще раза в sweepEvery
	sweepEvery time.Duration
	lastSweep  time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute, burst int, ttl time.Duration) *ipLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		limit:      rate.Every(time.Minute / time.Duration(perMinute)),
		burst:      burst,
		ttl:        ttl,
		entries:    make(map[string]*bucket),
		now:        time.Now,
		sweepEvery: ttl,
	}
}

func (l *ipLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.entries[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = b
	}
	b.lastSeen = now

	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}
	return b.lim.AllowN(now, 1)
}

// sweep забывает давно неактивные IP. Вызывается под l.mu.
func (l *ipLimiter) sweep(now time.Time) {
	for k, v := range l.entries {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

// clientIP — адрес после chi RealIP (X-Forwarded-For / X-Real-IP уже учтены)
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func (l *ipLimiter) middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "60")
				_ = handler.WriteJSON(w, http.StatusTooManyRequests, handler.ErrorResponse{
					Error:     "rate_limit_exceeded",
					Message:   "Too many authentication attempts",
					Status:    http.StatusTooManyRequests,
					Timestamp: l.now().UTC(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
