package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"voice-softphone/pkg/utils"
)

var ErrNotFound = errors.New("users: not found")

// Repository is the persistence contract for the user directory.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	FindByPhoneNumber(ctx context.Context, phone string) (Account, error)
}

// PostgresRepo reads users from Postgres through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectAccount = `SELECT id, username, email, phone_number, password_hash FROM users`

func (r *PostgresRepo) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE lower(email) = $1`, normalizeEmail(email))
	return scanAccount(row)
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresRepo) FindByPhoneNumber(ctx context.Context, phone string) (Account, error) {
	if phone == "" {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE phone_number = $1`, phone)
	return scanAccount(row)
}

// Create inserts a new account. PasswordHash must already be set.
func (r *PostgresRepo) Create(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, phone_number, password_hash) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Username, normalizeEmail(a.Email), a.PhoneNumber, a.PasswordHash,
	)
	return err
}

// Migrate creates the users table and its lookup indexes.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL,
				email         TEXT NOT NULL,
				phone_number  TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,
			`CREATE INDEX IF NOT EXISTS users_phone_number_idx ON users (phone_number)`,
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanAccount(row *sql.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PhoneNumber, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// MemoryRepo is an in-memory directory useful for tests and local runs.
type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryRepo(accounts ...Account) *MemoryRepo {
	r := &MemoryRepo{accounts: make(map[string]Account)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *MemoryRepo) Add(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = normalizeEmail(email)
	for _, a := range r.accounts {
		if normalizeEmail(a.Email) == email {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) FindByPhoneNumber(ctx context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if phone == "" {
		return Account{}, ErrNotFound
	}
	for _, a := range r.accounts {
		if a.PhoneNumber == phone {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
