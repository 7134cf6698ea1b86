package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "smartflow/internal/domain/user"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

type memUserRepo struct {
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (m *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	if _, ok := m.users[u.Username]; ok {
		return errors.ErrAlreadyExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return nil, nil
}

type memSessions struct {
	values map[string]string
}

func newMemSessions() *memSessions {
	return &memSessions{values: make(map[string]string)}
}

func (m *memSessions) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memSessions) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return errors.ErrNotFound
	}
	*dest.(*string) = v
	return nil
}

func (m *memSessions) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func newTestService() (*Service, *memUserRepo, *memSessions) {
	repo := newMemUserRepo()
	sessions := newMemSessions()
	return NewService(repo, sessions, logger.Get()), repo, sessions
}

func TestHashPassword(t *testing.T) {
	// SHA-256("password")
	assert.Equal(t,
		"5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8",
		HashPassword("password"),
	)
}

func TestRegister(t *testing.T) {
	svc, repo, _ := newTestService()

	u, err := svc.Register(context.Background(), "trader", "trader@example.com", "secret")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "trader", u.Username)
	assert.Equal(t, HashPassword("secret"), u.PasswordHash)
	assert.Len(t, repo.users, 1)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "trader", "a@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "trader", "b@example.com", "other")
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestRegister_RejectsEmptyCredentials(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "  ", "x@example.com", "secret")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = svc.Register(context.Background(), "trader", "x@example.com", "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()

	registered, err := svc.Register(context.Background(), "trader", "trader@example.com", "secret")
	require.NoError(t, err)

	token, u, err := svc.Login(context.Background(), "trader", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, u.ID)

	resolved, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "trader", "trader@example.com", "secret")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "trader", "wrong")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, _, err = svc.Login(context.Background(), "nobody", "secret")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestLogout_InvalidatesSession(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "trader", "trader@example.com", "secret")
	require.NoError(t, err)

	token, _, err := svc.Login(context.Background(), "trader", "secret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))

	_, err = svc.Authenticate(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}
