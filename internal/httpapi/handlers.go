package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voice-softphone/internal/auth"
	"voice-softphone/internal/users"
	"voice-softphone/pkg/logger"
	"voice-softphone/pkg/utils"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Error bodies are {"message": ...}, which is what the app displays.
type Handlers struct {
	Auth  *auth.Manager
	Users *users.Service
	Now   func() time.Time

	// Probes back /readyz.
	Probes []utils.Probe
}

func (h Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// Ready reports 503 with the failing dependencies until every probe passes.
func (h Handlers) Ready(c *gin.Context) {
	failures := utils.RunProbes(c.Request.Context(), 2*time.Second, h.Probes...)
	if len(failures) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	down := make(gin.H, len(failures))
	for name, err := range failures {
		logger.FromGin(c).Warn("readiness probe failed", "probe", name, "err", err)
		down[name] = err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failing": down})
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// SignedIn and Language are sent by the app; accepted and ignored.
	SignedIn bool   `json:"signedIn"`
	Language string `json:"language"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  users.User `json:"user"`
}

// Login checks credentials and issues a session token.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "email and password required"})
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("authenticate failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}

	tok, err := h.Auth.IssueSession(h.now(), u)
	if err != nil {
		logger.FromGin(c).Error("session token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: tok, User: u})
}

// Validate answers whether the bearer session token is still good.
// An invalid token is a 401 with authenticate=false rather than an error body.
func (h Handlers) Validate(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "auth not configured"})
		return
	}
	tok, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"authenticate": false})
		return
	}
	claims, err := h.Auth.Verify(tok, auth.TokenTypeSession, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"authenticate": false})
		return
	}
	if h.Users != nil {
		if _, err := h.Users.Lookup(c.Request.Context(), claims.UserID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"authenticate": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"authenticate": true})
}

// --- Voice ---

// VoiceToken issues the access token a device registers with.
// Requires auth.RequireSessionToken in front.
func (h Handlers) VoiceToken(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "auth not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user required"})
		return
	}
	u, err := h.Users.Lookup(c.Request.Context(), userID)
	if errors.Is(err, users.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("user lookup failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "user lookup failed"})
		return
	}
	tok, err := h.Auth.IssueVoice(h.now(), u)
	if err != nil {
		logger.FromGin(c).Error("voice token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
