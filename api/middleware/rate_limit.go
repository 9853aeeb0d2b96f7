package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/atlastravel/backoffice-backend/api/responses"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

// TrackingLimiter is the slice of the redis client the limiter needs.
type TrackingLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// TrackingRateLimit throttles the public tracking endpoints per client IP.
// The endpoints are unauthenticated and reachable straight from email clients,
// so the counter key is the only identity available.
func TrackingRateLimit(cfg config.RateLimitConfig, limiter TrackingLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.TrackingWindow <= 0 || cfg.TrackingIPLimit <= 0 || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := ClientIP(r)
			allowed, count, err := limiter.FixedWindowAllow(ctx, "tracking:"+ip, int64(cfg.TrackingIPLimit), cfg.TrackingWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					lctx := logg.WithFields(ctx, map[string]any{
						"ip":             ip,
						"attempts":       count,
						"limit":          cfg.TrackingIPLimit,
						"window_seconds": int(cfg.TrackingWindow.Seconds()),
					})
					logg.Warn(lctx, "tracking.rate_limit.blocked")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the originating address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
