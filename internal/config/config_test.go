package config

import (
	"testing"
	"time"
)

func validServer(env string) ServerConfig {
	return ServerConfig{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestServerValidate_ReportsMissingRequired(t *testing.T) {
	c := ServerConfig{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestServerValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validServer("production")
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestServerValidate_LocalDefaults(t *testing.T) {
	c := validServer("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.VoiceTokenTTL != time.Hour {
		t.Fatalf("expected default voice ttl, got %v", c.Auth.VoiceTokenTTL)
	}
}

func TestServerValidate_VoiceTTLBoundedBySession(t *testing.T) {
	c := validServer("local")
	c.Auth.SessionTokenTTL = time.Minute
	c.Auth.VoiceTokenTTL = time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when voice ttl exceeds session ttl")
	}
}

func TestLoadClient_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("CONTROL_PORT", "7070")
	t.Setenv("API_BASE_URL", "http://localhost:5001/")
	t.Setenv("RELAY_URL", "ws://localhost:5001/voice/relay")
	t.Setenv("RING_TIMEOUT", "0s")
	t.Setenv("GRANTED_PERMISSIONS", "microphone, phone_state")
	t.Setenv("REQUIRE_PHONE_STATE_PERMISSION", "true")

	c, err := LoadClient()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.APIBaseURL != "http://localhost:5001" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.APIBaseURL)
	}
	if c.StoreBackend != "memory" {
		t.Fatalf("expected memory store default, got %q", c.StoreBackend)
	}
	if c.RingTimeout != 0 {
		t.Fatalf("expected ring timeout disabled, got %v", c.RingTimeout)
	}
	if len(c.Permissions.Granted) != 2 || c.Permissions.Granted[1] != "phone_state" {
		t.Fatalf("unexpected granted permissions: %v", c.Permissions.Granted)
	}
	if !c.Permissions.RequirePhoneStatePermission || !c.Permissions.PhoneStateApplicable {
		t.Fatalf("unexpected permission flags: %+v", c.Permissions)
	}
	if c.HTTPAddr() != "127.0.0.1:7070" {
		t.Fatalf("unexpected control addr %q", c.HTTPAddr())
	}
}

func TestLoadClient_DefaultRingTimeout(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("CONTROL_PORT", "7070")
	t.Setenv("API_BASE_URL", "http://localhost:5001")
	t.Setenv("RELAY_URL", "ws://localhost:5001/voice/relay")
	t.Setenv("RING_TIMEOUT", "")

	c, err := LoadClient()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RingTimeout != 45*time.Second {
		t.Fatalf("expected default ring timeout, got %v", c.RingTimeout)
	}
}

func TestClientValidate_RejectsBadURLs(t *testing.T) {
	c := ClientConfig{
		App:        AppConfig{Env: "dev", Port: 7070},
		APIBaseURL: "ftp://x",
		RelayURL:   "http://x",
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected url validation errors")
	}
}

func TestClientValidate_CredentialsTogether(t *testing.T) {
	c := ClientConfig{
		App:        AppConfig{Env: "dev", Port: 7070},
		APIBaseURL: "http://localhost:5001",
		RelayURL:   "ws://localhost:5001/voice/relay",
		LoginEmail: "a@b.c",
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for email without password")
	}
}
