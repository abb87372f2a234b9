package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kisschan/monachat-like/chat"
)

// TokenHeader carries the session token issued on join.
const TokenHeader = "X-Monachat-Token"

const accountKey = "chat.account"

// AccountMiddleware resolves the session token into an account and
// aborts with 401 when it does not resolve.
func AccountMiddleware(directory chat.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := directory.AccountByToken(c.GetHeader(TokenHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Set(accountKey, account)
		c.Next()
	}
}

// AccountFrom returns the account resolved by AccountMiddleware.
func AccountFrom(c *gin.Context) (chat.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return chat.Account{}, false
	}
	account, ok := v.(chat.Account)
	return account, ok
}
