// Package storage keeps the softphone's persisted login state: the session token,
// the signed-in user and the current voice token.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"voice-softphone/internal/users"
)

var ErrNotFound = errors.New("storage: not found")

type Store interface {
	SessionToken(ctx context.Context) (string, error)
	SetSessionToken(ctx context.Context, token string) error
	User(ctx context.Context) (users.User, error)
	SetUser(ctx context.Context, u users.User) error
	VoiceToken(ctx context.Context) (string, error)
	SetVoiceToken(ctx context.Context, token string) error
	// Clear removes every key in one step.
	Clear(ctx context.Context) error
}

const (
	keySessionToken = "token"
	keyUser         = "user"
	keyVoiceToken   = "twilioToken"
)

// MemoryStore keeps state for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{vals: make(map[string]string)} }

func (m *MemoryStore) get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) set(key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = val
	return nil
}

func (m *MemoryStore) SessionToken(context.Context) (string, error) { return m.get(keySessionToken) }
func (m *MemoryStore) SetSessionToken(_ context.Context, t string) error {
	return m.set(keySessionToken, t)
}
func (m *MemoryStore) VoiceToken(context.Context) (string, error) { return m.get(keyVoiceToken) }
func (m *MemoryStore) SetVoiceToken(_ context.Context, t string) error {
	return m.set(keyVoiceToken, t)
}

func (m *MemoryStore) User(context.Context) (users.User, error) {
	raw, err := m.get(keyUser)
	if err != nil {
		return users.User{}, err
	}
	return decodeUser(raw)
}

func (m *MemoryStore) SetUser(_ context.Context, u users.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return m.set(keyUser, string(raw))
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals = make(map[string]string)
	return nil
}

func decodeUser(raw string) (users.User, error) {
	var u users.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return users.User{}, fmt.Errorf("storage: decode user: %w", err)
	}
	return u, nil
}
