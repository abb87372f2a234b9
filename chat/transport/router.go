package transport

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/kisschan/monachat-like/chat"
	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/internal/validation"
	"github.com/kisschan/monachat-like/push"
)

type Router struct {
	directory chat.Directory
	hub       *push.Hub
	logger    *log.Logger
}

// NewRouter registers the chat surface on an existing engine; the engine
// is shared with the live surface and owned by the composition root.
func NewRouter(engine *gin.Engine, directory chat.Directory, hub *push.Hub, logger *log.Logger) *Router {
	r := &Router{
		directory: directory,
		hub:       hub,
		logger:    logger,
	}
	r.setupRoutes(engine)
	return r
}

func (r *Router) setupRoutes(engine *gin.Engine) {
	engine.POST("/api/join", r.join)

	authed := engine.Group("", AccountMiddleware(r.directory))
	authed.POST("/api/leave", r.leave)
	authed.POST("/api/move", r.move)
	authed.POST("/api/ignore", r.ignore)

	// websockets cannot carry custom headers from a browser, the token
	// rides in the query string instead
	engine.GET("/ws", r.serveWS)
}

func (r *Router) join(c *gin.Context) {
	var body JoinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid-argument",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	account, token, err := r.directory.Join(body.Name, body.Room, c.ClientIP())
	if err != nil {
		r.logger.Error("Failed to join", log.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-argument"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"token":   token,
	})
}

func (r *Router) leave(c *gin.Context) {
	account, _ := AccountFrom(c)
	r.directory.Leave(account.ID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) move(c *gin.Context) {
	var body MoveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid-argument",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	account, _ := AccountFrom(c)
	if err := r.directory.Move(account.ID, body.Room); err != nil {
		r.logger.Error("Failed to move", log.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "account-not-found"})
		return
	}
	// open websockets follow the account into the new room
	r.hub.Move(account.ID, body.Room)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) ignore(c *gin.Context) {
	var body IgnoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid-argument",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	account, _ := AccountFrom(c)
	if err := r.directory.SetIgnored(account.ID, body.IHash, *body.On); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "invalid-argument"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) serveWS(c *gin.Context) {
	account, ok := r.directory.AccountByToken(c.Query("token"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Debug("Websocket accept failed", log.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	r.hub.Serve(c.Request.Context(), account.ID, account.Room, conn)
}
