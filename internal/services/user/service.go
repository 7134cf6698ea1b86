package user

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartflow/internal/domain/user"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// SessionTTL bounds how long a login token stays valid
const SessionTTL = 24 * time.Hour

// SessionStore keeps login tokens (redis in production)
type SessionStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// Service handles registration, login and session validation
type Service struct {
	repo     user.Repository
	sessions SessionStore
	log      *logger.Logger
}

// NewService creates a new user service
func NewService(repo user.Repository, sessions SessionStore, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		log:      log,
	}
}

// Register creates a new account. The username must be unique; the
// password is stored as its SHA-256 digest.
func (s *Service) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "username and password are required")
	}

	u := &user.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: HashPassword(password),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Infow("User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login verifies credentials and issues a session token
func (s *Service) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, errors.ErrNotFound) {
		return "", nil, errors.Wrap(errors.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}

	hash := HashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(u.PasswordHash)) != 1 {
		return "", nil, errors.Wrap(errors.ErrUnauthorized, "invalid credentials")
	}

	token := uuid.NewString()
	if err := s.sessions.Set(ctx, sessionKey(token), u.ID.String(), SessionTTL); err != nil {
		return "", nil, errors.Wrap(err, "store session")
	}

	s.log.Infow("User logged in", "user_id", u.ID)
	return token, u, nil
}

// Authenticate resolves a session token to its user
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "missing session token")
	}

	var idStr string
	if err := s.sessions.Get(ctx, sessionKey(token), &idStr); err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid or expired session")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "corrupt session")
	}

	return s.repo.GetByID(ctx, id)
}

// Logout invalidates a session token
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, sessionKey(token))
}

// GetByID returns a user by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

// HashPassword returns the hex SHA-256 digest of a password
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}
