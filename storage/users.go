package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore persists user accounts.
type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user. A duplicate email fails with ErrConflict.
func (s *UserStore) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, name, password_digest, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, query, u.ID, u.Email, u.Name, u.PasswordDigest, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, name, password_digest, created_at
		FROM users WHERE id = $1`
	u := &User{}
	err := s.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordDigest, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", mapError(err))
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, name, password_digest, created_at
		FROM users WHERE email = $1`
	u := &User{}
	err := s.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordDigest, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", mapError(err))
	}
	return u, nil
}

// UpdatePasswordDigest replaces the stored digest, used by the password
// reset flow.
func (s *UserStore) UpdatePasswordDigest(ctx context.Context, id uuid.UUID, digest string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_digest = $2 WHERE id = $1`, id, digest)
	if err != nil {
		return fmt.Errorf("update password digest: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password digest: %w", ErrNotFound)
	}
	return nil
}
