package transport

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kisschan/monachat-like/chat"
	chattransport "github.com/kisschan/monachat-like/chat/transport"
	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/internal/validation"
	"github.com/kisschan/monachat-like/live"
	"github.com/kisschan/monachat-like/live/service"
)

// lock churn limit per account, start and stop share one limiter
const (
	lockOpsPerSecond = 1
	lockOpsBurst     = 5
)

type Router struct {
	service service.Service
	cfg     live.Config
	logger  *log.Logger
}

// NewRouter registers the broadcast surface on an existing engine.
func NewRouter(engine *gin.Engine, svc service.Service, directory chat.Directory, cfg live.Config, logger *log.Logger) *Router {
	r := &Router{
		service: svc,
		cfg:     cfg,
		logger:  logger,
	}
	r.setupRoutes(engine, directory)
	return r
}

func (r *Router) setupRoutes(engine *gin.Engine, directory chat.Directory) {
	authed := engine.Group("/api/live", chattransport.AccountMiddleware(directory))
	authed.GET("/rooms", r.rooms)

	limiter := newAccountLimiter(rate.Limit(lockOpsPerSecond), lockOpsBurst)
	authed.POST("/:room/start", limiter.Middleware(), r.start)
	authed.POST("/:room/stop", limiter.Middleware(), r.stop)
	authed.GET("/:room/status", r.status)
	authed.GET("/:room/webrtc-config", r.webrtcConfig)

	internal := engine.Group("/internal/live", r.edgeSecretMiddleware())
	internal.GET("/whip-auth", r.whipAuth)
	internal.GET("/whep-auth", r.whepAuth)
}

func (r *Router) bindRoom(c *gin.Context) (string, bool) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid-argument",
			"details": validation.FormatValidationError(err),
		})
		return "", false
	}
	return uri.Room, true
}

// member resolves the authenticated account and requires it to stand in
// the room it operates on. The cross-room catalogue is the only surface
// exempt from this.
func (r *Router) member(c *gin.Context, room string) (chat.Account, bool) {
	account, _ := chattransport.AccountFrom(c)
	if account.Room != room {
		c.JSON(http.StatusForbidden, gin.H{"error": "not-in-room"})
		return account, false
	}
	return account, true
}

func (r *Router) start(c *gin.Context) {
	room, ok := r.bindRoom(c)
	if !ok {
		return
	}

	// audioOnly is optional, a body-less start means the defaults
	var body StartBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid-argument",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	account, ok := r.member(c, room)
	if !ok {
		return
	}
	if err := r.service.Start(c.Request.Context(), room, account.ID, body.AudioOnly); err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) stop(c *gin.Context) {
	room, ok := r.bindRoom(c)
	if !ok {
		return
	}

	account, ok := r.member(c, room)
	if !ok {
		return
	}
	if err := r.service.Stop(c.Request.Context(), room, account.ID); err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) status(c *gin.Context) {
	room, ok := r.bindRoom(c)
	if !ok {
		return
	}

	account, ok := r.member(c, room)
	if !ok {
		return
	}
	st, err := r.service.Status(c.Request.Context(), room, account.ID)
	if err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) webrtcConfig(c *gin.Context) {
	room, ok := r.bindRoom(c)
	if !ok {
		return
	}

	account, ok := r.member(c, room)
	if !ok {
		return
	}
	cfg, err := r.service.WebRTCConfig(c.Request.Context(), room, account.ID)
	if err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (r *Router) rooms(c *gin.Context) {
	account, _ := chattransport.AccountFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"rooms": r.service.Rooms(c.Request.Context(), account.ID),
	})
}

func (r *Router) renderError(c *gin.Context, err error) {
	var coded *errors.Error
	if e, ok := errors.As[*errors.Error](err); ok {
		coded = *e
	}
	if coded == nil {
		r.logger.Error("Unclassified error", log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	status := http.StatusInternalServerError
	switch coded.Code {
	case live.ErrAlreadyLive, live.ErrNoLiveLock:
		status = http.StatusConflict
	case live.ErrNotPublisher:
		status = http.StatusForbidden
	case live.ErrNotFound:
		status = http.StatusNotFound
	case live.ErrDisabled:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": string(coded.Code)})
}
