package httpserver

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// RateLimit rejects callers over quota with 429 and Retry-After. Callers are
// keyed by network address, so every identity behind one address shares the
// quota. Limiter errors let the request through.
func RateLimit(l domain.RateLimiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry, err := l.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				LoggerFrom(r).Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				observability.RateLimited(route)
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, domain.ErrRateLimited, map[string]int{"retryAfterSeconds": secs})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the host part of RemoteAddr. Forwarding headers are honoured only
// when the router rewrites RemoteAddr from them (TRUST_PROXY_HEADERS).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
