package auth

import (
	"testing"
	"time"

	"voice-softphone/internal/config"
	"voice-softphone/internal/users"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		SessionTokenTTL: 24 * time.Hour,
		VoiceTokenTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

var jane = users.User{ID: "user-1", Username: "jane", Email: "jane@example.com", PhoneNumber: "+15551234567"}

func TestIssueAndVerifySessionToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueSession(now, jane)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, TokenTypeSession, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "jane@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVoiceTokenCarriesPhoneNumber(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueVoice(now, jane)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, TokenTypeVoice, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.PhoneNumber != "+15551234567" {
		t.Fatalf("expected phone number in voice token, got %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newManager(t)
	tok, err := m.IssueVoice(time.Now(), jane)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, TokenTypeSession, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpiredVoiceToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueVoice(now, jane)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, TokenTypeVoice, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
