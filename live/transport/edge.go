package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/kisschan/monachat-like/internal/cryptoutil"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/live/token"
)

// Headers of the edge auth-callback contract. The edge proxy forwards
// the original request URI and authenticates itself with a shared
// secret; the denial reason is diagnostic only and never reaches the
// end client.
const (
	OriginalURIHeader = "X-Original-URI"
	EdgeSecretHeader  = "X-Edge-Secret"
	DenyReasonHeader  = "X-Live-Auth-Reason"
)

func (r *Router) edgeSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.cfg.EdgeSecret == "" ||
			!cryptoutil.SecureCompare(c.GetHeader(EdgeSecretHeader), r.cfg.EdgeSecret) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func (r *Router) whipAuth(c *gin.Context) {
	r.edgeAuth(c, r.service.AdmitPublish)
}

func (r *Router) whepAuth(c *gin.Context) {
	r.edgeAuth(c, r.service.AdmitSubscribe)
}

func (r *Router) edgeAuth(c *gin.Context, admit func(ctx context.Context, streamParam, tokenParam string) (string, token.Reason)) {
	streamParam, tokenParam, ok := r.forwardedParams(c)
	if !ok {
		r.deny(c, token.ReasonMissingParams)
		return
	}

	room, reason := admit(c.Request.Context(), streamParam, tokenParam)
	if reason != "" {
		r.deny(c, reason)
		return
	}

	r.logger.Debug("Edge session admitted",
		log.String("room", room),
		log.String("path", c.FullPath()))
	c.Status(http.StatusOK)
}

// forwardedParams extracts stream and token from the forwarded original
// URI. The token may arrive as either "token" or "auth" depending on
// the edge flavor.
func (r *Router) forwardedParams(c *gin.Context) (string, string, bool) {
	original := c.GetHeader(OriginalURIHeader)
	if original == "" {
		return "", "", false
	}
	u, err := url.ParseRequestURI(original)
	if err != nil {
		r.logger.Debug("Unparseable forwarded URI", log.Error(err))
		return "", "", false
	}

	q := u.Query()
	streamParam := q.Get("stream")
	tokenParam := q.Get("token")
	if tokenParam == "" {
		tokenParam = q.Get("auth")
	}
	if streamParam == "" || tokenParam == "" {
		return "", "", false
	}
	return streamParam, tokenParam, true
}

// deny returns a bare 403; the reason goes into a diagnostic header so
// the edge's logs can tell an expired token from a forged one while the
// end client sees one opaque denial.
func (r *Router) deny(c *gin.Context, reason token.Reason) {
	c.Header(DenyReasonHeader, string(reason))
	c.Status(http.StatusForbidden)
}
