package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"musicbox/core/auth"
	"musicbox/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, username, password string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// sqlUserRepository implements UserRepository over database/sql.
type sqlUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new sqlUserRepository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

// CreateUser hashes the password and adds a new user to the database.
// The plaintext password is never written.
func (r *sqlUserRepository) CreateUser(ctx context.Context, username, password string) (int64, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}

	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare create user statement: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, username, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("failed to execute create user statement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for user: %w", err)
	}
	return id, nil
}

// GetUserByUsername retrieves a user by exact username.
func (r *sqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = ?", username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user row for username %s: %w", username, err)
	}
	return user, nil
}
