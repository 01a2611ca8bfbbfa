package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"task_api/internal/db"

	"github.com/sirupsen/logrus"
)

type UserRepository struct {
	db *sql.DB
}

type UserRepositoryInterface interface {
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

func NewUserRepository(db *sql.DB) UserRepositoryInterface {
	return &UserRepository{db: db}
}

// Create inserts a new user. A taken username yields ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	query := `
		INSERT INTO users (
			username, password_hash
		)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, created_at
	`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, username, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		logrus.WithError(err).Error("Failed to create user")
		return nil, fmt.Errorf("insert user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User created successfully")

	return user, nil
}

// GetByUsername returns nil, nil when no such user exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logrus.WithError(err).Error("Failed to get user by username")
		return nil, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}
