package users

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("users: invalid credentials")

// Service authenticates users against the directory.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// Authenticate returns the user for a matching email/password pair.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if s.repo == nil {
		return User{}, errors.New("users: repository not configured")
	}
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return a.User, nil
}

// Lookup returns the user by id.
func (s *Service) Lookup(ctx context.Context, id string) (User, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return a.User, nil
}

// LookupByPhoneNumber returns the user owning phone.
func (s *Service) LookupByPhoneNumber(ctx context.Context, phone string) (User, error) {
	a, err := s.repo.FindByPhoneNumber(ctx, phone)
	if err != nil {
		return User{}, err
	}
	return a.User, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
