// Package control is the local HTTP surface of the softphone daemon. The UI
// shell dials and signs in through it; the native shell follows the call
// screen notices and reports answer/end back.
package control

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voice-softphone/internal/account"
	"voice-softphone/internal/calls"
	"voice-softphone/internal/callui"
	"voice-softphone/internal/history"
	"voice-softphone/internal/permission"
	"voice-softphone/internal/users"
	"voice-softphone/pkg/logger"
)

type CallState interface {
	Snapshot() calls.Session
}

type Session interface {
	Login(ctx context.Context, email, password string) (users.User, error)
	Logout(ctx context.Context)
	User() (users.User, bool)
	Dial(ctx context.Context, number string) (string, error)
}

type NativeUI interface {
	Answer(ctx context.Context, callID string) error
	EndCall(ctx context.Context, callID string) error
	Subscribe(buffer int) (<-chan callui.Notice, func())
}

type History interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type Server struct {
	Calls    CallState
	Session  Session
	Native   NativeUI
	History  History
	Gatherer prometheus.Gatherer
}

// Routes mounts the control API on r.
func (s Server) Routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/call", s.currentCall)
		v1.POST("/calls", s.dial)
		v1.GET("/history", s.history)

		v1.POST("/session/login", s.login)
		v1.POST("/session/logout", s.logout)
		v1.GET("/session", s.session)

		native := v1.Group("/native")
		native.POST("/:call_id/answer", s.answer)
		native.POST("/:call_id/end", s.end)
		native.GET("/events", s.events)
	}
}

func (s Server) currentCall(c *gin.Context) {
	c.JSON(http.StatusOK, s.Calls.Snapshot())
}

type dialRequest struct {
	Number string `json:"number"`
}

func (s Server) dial(c *gin.Context) {
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Number == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "number required"})
		return
	}
	id, err := s.Session.Dial(c.Request.Context(), req.Number)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"call_id": id})
	case errors.Is(err, account.ErrNotSignedIn):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "sign in first"})
	case errors.Is(err, permission.ErrDenied):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "microphone permission is required to place calls"})
	case errors.Is(err, calls.ErrBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "another call is in progress"})
	case errors.Is(err, account.ErrNoVoiceToken):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "voice service is not ready"})
	default:
		logger.FromGin(c).Error("dial failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "call failed"})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "email and password required"})
		return
	}
	u, err := s.Session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logger.FromGin(c).Warn("login failed", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s Server) logout(c *gin.Context) {
	s.Session.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s Server) session(c *gin.Context) {
	u, ok := s.Session.User()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": u})
}

func (s Server) history(c *gin.Context) {
	if s.History == nil {
		c.JSON(http.StatusOK, gin.H{"records": []history.Record{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := s.History.Recent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "history unavailable"})
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (s Server) answer(c *gin.Context) {
	if err := s.Native.Answer(c.Request.Context(), c.Param("call_id")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s Server) end(c *gin.Context) {
	if err := s.Native.EndCall(c.Request.Context(), c.Param("call_id")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// events streams call screen notices as server-sent events until the client goes away.
func (s Server) events(c *gin.Context) {
	notices, cancel := s.Native.Subscribe(16)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-notices:
			if !ok {
				return false
			}
			c.SSEvent(string(n.Type), n)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
