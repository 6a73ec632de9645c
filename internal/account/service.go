// Package account is the signed-in session of the softphone: it logs in against
// the backend, brings up signaling for the user and tears everything down on logout.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"voice-softphone/internal/apiclient"
	"voice-softphone/internal/permission"
	"voice-softphone/internal/signaling"
	"voice-softphone/internal/storage"
	"voice-softphone/internal/users"
)

var (
	ErrNotSignedIn  = errors.New("account: not signed in")
	ErrNoVoiceToken = errors.New("account: no voice token")
)

type Backend interface {
	Login(ctx context.Context, email, password string) (apiclient.LoginResponse, error)
	Validate(ctx context.Context, sessionToken string) (bool, error)
	VoiceToken(ctx context.Context, sessionToken string) (string, error)
}

type Signaling interface {
	Register(ctx context.Context, accessToken string) error
	Unregister(ctx context.Context, accessToken string)
	SetPermissionGranted(granted bool)
	PermissionGranted() bool
}

type Calls interface {
	Dial(ctx context.Context, accessToken, destination string) (string, error)
	Reset(ctx context.Context) error
}

type PermissionGate interface {
	RequestCallPermissions(ctx context.Context) bool
}

type Service struct {
	backend Backend
	store   storage.Store
	sig     Signaling
	calls   Calls
	gate    PermissionGate
	log     *slog.Logger

	mu    sync.RWMutex
	token string
	user  *users.User
}

func NewService(backend Backend, store storage.Store, sig Signaling, calls Calls, gate PermissionGate, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		backend: backend,
		store:   store,
		sig:     sig,
		calls:   calls,
		gate:    gate,
		log:     log.With("component", "account"),
	}
}

// User returns the signed-in user, if any.
func (s *Service) User() (users.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return users.User{}, false
	}
	return *s.user, true
}

func (s *Service) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *Service) setIdentity(token string, u *users.User) {
	s.mu.Lock()
	s.token = token
	s.user = u
	s.mu.Unlock()
}

// ValidateSession restores a saved session if the backend still accepts it.
// Anything short of a confirmed session clears the saved state.
func (s *Service) ValidateSession(ctx context.Context) (bool, error) {
	token, err := s.store.SessionToken(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	u, err := s.store.User(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.clearStore(ctx)
		return false, err
	}

	ok, err := s.backend.Validate(ctx, token)
	if err != nil {
		s.log.Error("session validation failed", "err", err)
		s.clearStore(ctx)
		return false, err
	}
	if !ok {
		s.log.Info("saved session no longer valid")
		s.clearStore(ctx)
		return false, nil
	}

	s.setIdentity(token, &u)
	s.initializeServices(ctx, token)
	return true, nil
}

// Login signs in and brings up signaling. Only the login itself can fail;
// service initialization problems are logged.
func (s *Service) Login(ctx context.Context, email, password string) (users.User, error) {
	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return users.User{}, err
	}
	if err := s.store.SetSessionToken(ctx, resp.Token); err != nil {
		return users.User{}, fmt.Errorf("account: save session: %w", err)
	}
	if err := s.store.SetUser(ctx, resp.User); err != nil {
		return users.User{}, fmt.Errorf("account: save user: %w", err)
	}
	u := resp.User
	s.setIdentity(resp.Token, &u)
	s.log.Info("signed in", "user_id", u.ID)

	s.initializeServices(ctx, resp.Token)
	return u, nil
}

func (s *Service) initializeServices(ctx context.Context, sessionToken string) {
	granted := s.gate.RequestCallPermissions(ctx)
	s.sig.SetPermissionGranted(granted)
	if !granted {
		s.log.Error("call permissions not granted, skipping signaling registration")
		return
	}

	voiceToken, err := s.refreshVoiceToken(ctx, sessionToken)
	if err != nil {
		s.log.Error("fetch voice token failed", "err", err)
		return
	}

	err = s.sig.Register(ctx, voiceToken)
	if signaling.IsInvalidToken(err) {
		s.log.Warn("voice token refused, fetching a new one")
		if voiceToken, err = s.refreshVoiceToken(ctx, sessionToken); err == nil {
			err = s.sig.Register(ctx, voiceToken)
		}
	}
	if err != nil {
		s.log.Error("signaling registration failed", "err", err)
	}
}

func (s *Service) refreshVoiceToken(ctx context.Context, sessionToken string) (string, error) {
	tok, err := s.backend.VoiceToken(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	if err := s.store.SetVoiceToken(ctx, tok); err != nil {
		return "", fmt.Errorf("account: save voice token: %w", err)
	}
	return tok, nil
}

// Logout always completes locally: signaling and call teardown are best-effort.
func (s *Service) Logout(ctx context.Context) {
	if tok, err := s.store.VoiceToken(ctx); err == nil && tok != "" {
		s.sig.Unregister(ctx, tok)
	}
	if err := s.calls.Reset(ctx); err != nil {
		s.log.Warn("call cleanup on logout failed", "err", err)
	}
	s.sig.SetPermissionGranted(false)
	s.clearStore(ctx)
	s.setIdentity("", nil)
	s.log.Info("signed out")
}

// Dial places an outbound call with the stored voice token.
func (s *Service) Dial(ctx context.Context, number string) (string, error) {
	if !s.Authenticated() {
		return "", ErrNotSignedIn
	}
	// A denied gate at sign-in also skips the voice token, so check permission first.
	if !s.sig.PermissionGranted() {
		return "", fmt.Errorf("account: dial: %w", permission.ErrDenied)
	}
	tok, err := s.store.VoiceToken(ctx)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && tok == "") {
		return "", ErrNoVoiceToken
	}
	if err != nil {
		return "", err
	}
	return s.calls.Dial(ctx, tok, number)
}

func (s *Service) clearStore(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.log.Error("clear storage failed", "err", err)
	}
}
