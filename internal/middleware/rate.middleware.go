package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"hms-notification-service/internal/auth"
	"hms-notification-service/internal/response"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RateLimitOptions struct {
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
	KeyPrefix     string
}

// RateLimiter counts requests per caller in fixed Redis windows and blocks a
// caller for BlockDuration once it exceeds Limit. Authenticated callers are
// keyed by user id, everyone else by client IP. Redis errors fail open.
func RateLimiter(rdb redis.Cmdable, opts RateLimitOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := opts.KeyPrefix + ":" + clientKey(r)
			blockKey := key + ":blocked"

			if ttl, err := rdb.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Try again in "+ttl.String())
				return
			}

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, opts.Window)
			}

			if count > int64(opts.Limit) {
				rdb.Set(ctx, blockKey, "1", opts.BlockDuration)
				w.Header().Set("Retry-After", strconv.Itoa(int(opts.BlockDuration.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Blocked for "+opts.BlockDuration.String())
				return
			}

			ttl, _ := rdb.TTL(ctx, key).Result()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(opts.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(opts.Limit-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if uid, ok := auth.GetUserID(r.Context()); ok {
		return "uid:" + uid
	}
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return "ip:" + strings.TrimSpace(strings.Split(ip, ",")[0])
}
