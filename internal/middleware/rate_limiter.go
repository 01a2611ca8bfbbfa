package middleware

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"task_api/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var tokenBucket = redis.NewScript(luaScript)

// timeNow is replaced in tests to drive refills without sleeping.
var timeNow = time.Now

const rateLimiterTimeout = 500 * time.Millisecond

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// keyFunc derives the bucket key for a request. ok=false means the request
// cannot be attributed and is rejected with 401.
type keyFunc func(c *gin.Context) (key string, ok bool)

// RateLimiterMiddleware limits each authenticated user with a token bucket.
// It must run after AuthMiddleware.
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig) gin.HandlerFunc {
	return rateLimiter(redisClient, config, func(c *gin.Context) (string, bool) {
		userID, err := auth.GetUserIDFromContext(c)
		if err != nil {
			return "", false
		}
		return UserRateLimiterKey(userID), true
	})
}

// ClientIPRateLimiterMiddleware limits unauthenticated endpoints per client IP.
func ClientIPRateLimiterMiddleware(redisClient *redis.Client, scope string, config *RateLimiterConfig) gin.HandlerFunc {
	return rateLimiter(redisClient, config, func(c *gin.Context) (string, bool) {
		return ClientRateLimiterKey(scope, c.ClientIP()), true
	})
}

func rateLimiter(redisClient *redis.Client, config *RateLimiterConfig, key keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket, ok := key(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), rateLimiterTimeout)
		defer cancel()

		allowed, err := tokenBucket.Run(ctx, redisClient, []string{bucket},
			config.Capacity,
			config.RefillRate,
			timeNow().UnixMilli(),
		).Int()
		if err != nil {
			// Fail open: allow request if Redis fails
			logrus.WithError(err).WithField("key", bucket).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		if allowed == 0 {
			retryAfter := int(math.Ceil(1.0 / config.RefillRate))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// UserRateLimiterKey builds the bucket key for a user.
func UserRateLimiterKey(userID int) string {
	return fmt.Sprintf("rate_limiter:user:%d", userID)
}

// ClientRateLimiterKey builds the bucket key for a client IP within scope.
func ClientRateLimiterKey(scope, ip string) string {
	return fmt.Sprintf("rate_limiter:%s:%s", scope, ip)
}
