package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	// TokenTypeSession authenticates the app against the REST API.
	TokenTypeSession TokenType = "session"
	// TokenTypeVoice registers a device with the voice relay.
	TokenTypeVoice TokenType = "voice"
)

// Claims are the only supported JWT claims shape for this service.
// Identity is the relay address of the user; voice tokens also carry the
// phone number so callers can dial either.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	TokenType   TokenType `json:"token_type"`
}
