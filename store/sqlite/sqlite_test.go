package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

func TestOpenCreatesSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fresh.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	// A fresh database answers queries against every table.
	_, total, err := s.ListProjects(context.Background(), store.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path)
	require.NoError(t, err)
	p := &types.Project{Slug: "kept", Name: "Kept"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	require.NoError(t, s.Close())

	// Reopening re-applies schema and migrations without clobbering data.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Slug)
}

func TestRunInTransactionCommit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	var id string
	err := env.Store.RunInTransaction(env.Ctx, func(tx store.Tx) error {
		p := &types.Project{Slug: "tx-commit", Name: "TX"}
		if err := tx.CreateProject(env.Ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	require.NoError(t, err)

	_, err = env.Store.GetProject(env.Ctx, id)
	assert.NoError(t, err)
}

func TestRunInTransactionRollback(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	var id string
	err := env.Store.RunInTransaction(env.Ctx, func(tx store.Tx) error {
		p := &types.Project{Slug: "tx-rollback", Name: "TX"}
		if err := tx.CreateProject(env.Ctx, p); err != nil {
			return err
		}
		id = p.ID
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = env.Store.GetProject(env.Ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound), "rolled-back row must not exist")
}

func TestRunInTransactionPanicRollsBack(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	var id string
	require.Panics(t, func() {
		_ = env.Store.RunInTransaction(env.Ctx, func(tx store.Tx) error {
			p := &types.Project{Slug: "tx-panic", Name: "TX"}
			if err := tx.CreateProject(env.Ctx, p); err != nil {
				return err
			}
			id = p.ID
			panic("boom")
		})
	})

	_, err := env.Store.GetProject(env.Ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRunInTransactionNestedJoins(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// A nested call joins the enclosing transaction, so the outer error
	// still rolls back everything the inner call wrote.
	var id string
	err := env.Store.RunInTransaction(env.Ctx, func(tx store.Tx) error {
		inner := tx.(*Store)
		if err := inner.RunInTransaction(env.Ctx, func(tx2 store.Tx) error {
			p := &types.Project{Slug: "tx-nested", Name: "TX"}
			if err := tx2.CreateProject(env.Ctx, p); err != nil {
				return err
			}
			id = p.ID
			return nil
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = env.Store.GetProject(env.Ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestCreateUserAndLookupByAPIKey(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	u := &types.User{Username: "alice", APIKey: "ph_test_key"}
	require.NoError(t, env.Store.CreateUser(env.Ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := env.Store.GetUserByAPIKey(env.Ctx, "ph_test_key")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = env.Store.GetUserByAPIKey(env.Ctx, "wrong")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.Store.CreateUser(env.Ctx, &types.User{Username: "bob", APIKey: "k1"}))
	err := env.Store.CreateUser(env.Ctx, &types.User{Username: "bob", APIKey: "k2"})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestCreateCallLog(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	score := 4.5
	l := &types.CallLog{
		PromptID:        "p-1",
		PromptVersion:   "1.0.0",
		CallerSystem:    "render_api",
		InputVariables:  types.Vars{"name": "Ada"},
		RenderedContent: "Hello Ada",
		TokenCount:      3,
		ResponseTimeMs:  12,
		QualityScore:    &score,
	}
	require.NoError(t, env.Store.CreateCallLog(env.Ctx, l))
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())

	// Logs carry no foreign keys, so they outlive the entities they mention.
	require.NoError(t, env.Store.CreateCallLog(env.Ctx, &types.CallLog{SceneID: "gone"}))
}
