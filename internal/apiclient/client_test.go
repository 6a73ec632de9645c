package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogin_SendsSignedInAndLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["signedIn"] != true || body["language"] != "en" || body["email"] != "jane@example.com" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = w.Write([]byte(`{"token":"sess","user":{"id":"u1","username":"jane","email":"jane@example.com"}}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL, nil).Login(context.Background(), "jane@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Token != "sess" || out.User.ID != "u1" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestLogin_ErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Login(context.Background(), "jane@example.com", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid credentials" {
		t.Fatalf("expected APIError with message, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized")
	}
}

func TestValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"authenticate":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"authenticate":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	ok, err := c.Validate(context.Background(), "good")
	if err != nil || !ok {
		t.Fatalf("expected valid session, got %v %v", ok, err)
	}
	ok, err = c.Validate(context.Background(), "stale")
	if err != nil || ok {
		t.Fatalf("expected invalid session without error, got %v %v", ok, err)
	}
}

func TestVoiceToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twilio/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"token":"voice"}`))
	}))
	defer srv.Close()

	tok, err := New(srv.URL, nil).VoiceToken(context.Background(), "sess")
	if err != nil || tok != "voice" {
		t.Fatalf("got %q, %v", tok, err)
	}
}

func TestVoiceToken_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).VoiceToken(context.Background(), "sess")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
}
