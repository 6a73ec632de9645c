// Package apiclient talks to the voice backend's REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-softphone/internal/users"
)

var ErrUnauthorized = errors.New("apiclient: unauthorized")

// APIError is a non-2xx response. Message comes from the {"message": ...} body when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: status %d", e.Status)
	}
	return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SignedIn bool   `json:"signedIn"`
	Language string `json:"language"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  users.User `json:"user"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	body := loginRequest{Email: email, Password: password, SignedIn: true, Language: "en"}
	if err := c.do(ctx, http.MethodPost, "/login", "", body, &out); err != nil {
		return LoginResponse{}, err
	}
	if out.Token == "" {
		return LoginResponse{}, errors.New("apiclient: login response has no token")
	}
	return out, nil
}

// Validate reports whether the session token is still accepted.
// A 401 is a normal "not authenticated" answer, not an error.
func (c *Client) Validate(ctx context.Context, sessionToken string) (bool, error) {
	var out struct {
		Authenticate bool `json:"authenticate"`
	}
	err := c.do(ctx, http.MethodGet, "/validate", sessionToken, nil, &out)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Authenticate, nil
}

// VoiceToken fetches a fresh access token for the voice relay.
func (c *Client) VoiceToken(ctx context.Context, sessionToken string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodGet, "/twilio/token", sessionToken, nil, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("apiclient: empty voice token")
	}
	return out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return nil
}
