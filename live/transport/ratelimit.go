package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	chattransport "github.com/kisschan/monachat-like/chat/transport"
)

const limiterCacheSize = 8192

// accountLimiter throttles lock churn per account. The LRU bound keeps
// one limiter per recent account without growing without limit.
type accountLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newAccountLimiter(limit rate.Limit, burst int) *accountLimiter {
	cache, _ := lru.New[string, *rate.Limiter](limiterCacheSize)
	return &accountLimiter{
		limiters: cache,
		limit:    limit,
		burst:    burst,
	}
}

func (l *accountLimiter) allow(accountID string) bool {
	limiter, ok := l.limiters.Get(accountID)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(accountID, limiter)
	}
	return limiter.Allow()
}

// Middleware rejects callers that churn the publisher lock too fast.
func (l *accountLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := chattransport.AccountFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !l.allow(account.ID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate-limited"})
			return
		}
		c.Next()
	}
}
