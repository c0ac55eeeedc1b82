package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimit 按客户端IP限流，rate 格式如 "600-M"；为空时不限流
func RateLimit(rate string, logger *zap.Logger) (gin.HandlerFunc, error) {
	if rate == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	instance := limiter.New(memory.NewStore(), r)

	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": 42900, "message": "Too many requests"})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			logger.Error("rate limiter failed", zap.Error(err))
			c.Next()
		}),
	), nil
}
