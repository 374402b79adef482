// Package middleware holds the HTTP middleware shared by the gateway:
// response security headers and per-client rate limiting.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeaders adds standard security headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies a token bucket per client IP. Proxy headers are never
// trusted; the TCP peer address is the client identity. Stale buckets are
// evicted opportunistically once the map grows past maxClients.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	const maxClients = 10000

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	clients := make(map[string]*client)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				if len(clients) >= maxClients {
					for key, old := range clients {
						if time.Since(old.lastSeen) > 3*time.Minute {
							delete(clients, key)
						}
					}
				}
				c = &client{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
				clients[ip] = c
			}
			c.lastSeen = time.Now()
			limiter := c.limiter
			mu.Unlock()

			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
