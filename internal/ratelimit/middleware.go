package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Koalla18/TakeSmart/internal/api/httpx"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
)

// Middleware limits requests whose path starts with one of prefixes, keyed by
// client address. Other paths pass through untouched. A failing backend lets
// the request through. With trustProxy the address comes from
// X-Forwarded-For or X-Real-IP when present.
func Middleware(limiter *Limiter, prefixes []string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limited(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), KeyForClient(clientIP(r, trustProxy)))
			if err != nil {
				metrics.RecordRateLimit("error")
				logging.FromContext(r.Context()).Debug("rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				metrics.RecordRateLimit("limited")
				if st := httpx.State(r.Context()); st != nil {
					st.Err = ErrLimited
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": ErrLimited.Error()})
				return
			}
			metrics.RecordRateLimit("allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func limited(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
