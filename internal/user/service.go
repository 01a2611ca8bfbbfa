package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"task_api/internal/auth"
	"task_api/internal/observability"

	"github.com/sirupsen/logrus"
)

// bcrypt only reads the first 72 bytes of a password.
const maxPasswordBytes = 72

var (
	ErrInvalidInput       = errors.New("username and password required")
	ErrPasswordTooLong    = fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, maxPasswordBytes)
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserService struct {
	repo       UserRepositoryInterface
	tokens     *auth.TokenManager
	bcryptCost int
	metrics    *observability.Metrics

	// dummyHash is compared against when the user does not exist so that
	// unknown usernames cost the same as wrong passwords.
	dummyHash []byte
}

type UserServiceInterface interface {
	Register(ctx context.Context, username, password string) (*User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

func NewUserService(repo UserRepositoryInterface, tokens *auth.TokenManager, bcryptCost int, metrics *observability.Metrics) (*UserService, error) {
	dummy, err := auth.GeneratePasswordHash("dummy-password", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &UserService{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		metrics:    metrics,
		dummyHash:  []byte(dummy),
	}, nil
}

// Register creates a new user with a hashed password.
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.metrics.AuthAttempt("register", "invalid_input")
		return nil, ErrInvalidInput
	}
	if len(password) > maxPasswordBytes {
		s.metrics.AuthAttempt("register", "invalid_input")
		return nil, ErrPasswordTooLong
	}

	hashedPassword, err := auth.GeneratePasswordHash(password, s.bcryptCost)
	if err != nil {
		s.metrics.AuthAttempt("register", "error")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, username, hashedPassword)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			s.metrics.AuthAttempt("register", "conflict")
			return nil, ErrUserExists
		}
		s.metrics.AuthAttempt("register", "error")
		return nil, err
	}

	s.metrics.AuthAttempt("register", "success")
	return user, nil
}

// Login verifies the credentials and returns a signed session token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.metrics.AuthAttempt("login", "error")
		return "", err
	}

	if user == nil {
		_ = auth.ComparePasswordHash(s.dummyHash, password)
		logrus.WithField("username", username).Warn("Login attempt for unknown user")
		s.metrics.AuthAttempt("login", "invalid_credentials")
		return "", ErrInvalidCredentials
	}

	if err := auth.ComparePasswordHash([]byte(user.PasswordHash), password); err != nil {
		logrus.WithField("user_id", user.ID).Warn("Login attempt with wrong password")
		s.metrics.AuthAttempt("login", "invalid_credentials")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		s.metrics.AuthAttempt("login", "error")
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.metrics.AuthAttempt("login", "success")
	return token, nil
}
