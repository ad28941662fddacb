package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/damilarekoiki/project-management/internal/pkg/ratelimit"
)

// RateLimit 按调用方限流。已认证请求按用户 id 分桶，其余按客户端 IP。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = "user:" + strconv.FormatUint(uint64(user.ID), 10)
		}

		if err := limiter.Allow(c.Request.Context(), key); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
				c.Abort()
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
			c.Abort()
			return
		}
		c.Next()
	}
}
