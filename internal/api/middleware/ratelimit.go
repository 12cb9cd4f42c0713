package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahilmundada/rathialmuninetwork/internal/metrics"
	"github.com/sahilmundada/rathialmuninetwork/internal/store"
)

// SendRateLimiter caps how many messages one user can send per minute. A
// burst of sends is persisted as fast as the store accepts writes; this is
// the only backpressure the subsystem applies, and it sits at the HTTP edge
// rather than in the router.
type SendRateLimiter struct {
	redis  *store.RedisStore
	limit  int
	window time.Duration
	logger zerolog.Logger
}

// NewSendRateLimiter creates a per-user send limiter backed by Redis
// counters. A nil redis store disables limiting (development mode).
func NewSendRateLimiter(redis *store.RedisStore, perMinute int, logger zerolog.Logger) *SendRateLimiter {
	return &SendRateLimiter{
		redis:  redis,
		limit:  perMinute,
		window: time.Minute,
		logger: logger,
	}
}

// Middleware enforces the limit for the authenticated user.
func (rl *SendRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID := GetUserFromContext(r.Context()).String()

		allowed, err := rl.redis.CheckRateLimit(r.Context(), userID, rl.limit)
		if err != nil {
			// Redis trouble must not block message delivery.
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.RateLimitHits.Inc()
			rl.logger.Warn().
				Str("user_id", userID).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		if err := rl.redis.IncrementRateLimit(r.Context(), userID, rl.window); err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit increment failed")
		}
		next.ServeHTTP(w, r)
	})
}
