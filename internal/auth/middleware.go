package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

// RequireToken verifies a bearer token of the expected type and injects identity
// into request context.
func RequireToken(m *Manager, expected TokenType) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := BearerToken(c.GetHeader(authorizationHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, expected, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.PhoneNumber)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

// RequireSessionToken guards the REST endpoints used by the app.
func RequireSessionToken(m *Manager) gin.HandlerFunc {
	return RequireToken(m, TokenTypeSession)
}
