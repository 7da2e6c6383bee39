package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

func newRepo(t *testing.T) *UserRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := &UserRepository{db: db}
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestUserRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	user := &domain.User{Username: "alice", PasswordHash: "h1"}
	id, err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Nil(t, got.LastLoginAt)

	require.NoError(t, repo.UpdatePassword(ctx, id, "h2"))
	require.NoError(t, repo.TouchLogin(ctx, id))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.NotNil(t, got.LastLoginAt)
}

func TestUserRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, repo.TouchLogin(ctx, 42), domain.ErrUserNotFound)

	_, err = repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}
