package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
	"github.com/poiesic/classgraph/storage/federated"
	"github.com/poiesic/classgraph/storage/memory"
)

func newTestStore(t *testing.T) *federated.Repository {
	t.Helper()
	list := make([]storage.Adapter, 0, len(core.Tags()))
	for _, tag := range core.Tags() {
		list = append(list, memory.NewAdapter(tag))
	}
	repo, err := federated.NewRepository(list, memory.NewIndex(), federated.WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(repo.Release)
	return repo
}

func TestRollbackRemovesCreated(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	unit := New(repo, nil)

	stored, err := unit.Set(ctx, core.NewText("ephemeral", "en"))
	require.NoError(t, err)
	assert.Equal(t, 1, unit.Pending())

	require.NoError(t, unit.Rollback(ctx))
	assert.Equal(t, 0, unit.Pending())

	got, err := repo.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRollbackRestoresOverwritten(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	original, err := repo.Set(ctx, core.NewText("version one", "en"))
	require.NoError(t, err)

	unit := New(repo, nil)
	updated := original.WithMeta(*original.Meta)
	updated.Props = &core.TextProps{Content: "version two", Language: "en"}
	_, err = unit.Set(ctx, updated)
	require.NoError(t, err)

	got, err := repo.Get(ctx, original.ID())
	require.NoError(t, err)
	assert.Equal(t, &core.TextProps{Content: "version two", Language: "en"}, got.Props)

	require.NoError(t, unit.Rollback(ctx))

	got, err = repo.Get(ctx, original.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.Props, got.Props)
	assert.True(t, original.Meta.UpdatedAt.Equal(got.Meta.UpdatedAt))
}

func TestRollbackRestoresRemoved(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	original, err := repo.Set(ctx, core.NewText("keep me", "en"))
	require.NoError(t, err)

	unit := New(repo, nil)
	require.NoError(t, unit.Remove(ctx, original.ID()))

	got, err := repo.Get(ctx, original.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, unit.Rollback(ctx))

	got, err = repo.Get(ctx, original.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.Props, got.Props)
}

func TestRemoveAbsentRecordsNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	unit := New(repo, nil)

	require.NoError(t, unit.Remove(ctx, "never-existed"))
	assert.Equal(t, 0, unit.Pending())
}

func TestCommitDropsLog(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	unit := New(repo, nil)

	stored, err := unit.Set(ctx, core.NewText("durable", "en"))
	require.NoError(t, err)

	unit.Commit()
	assert.Equal(t, 0, unit.Pending())
	require.NoError(t, unit.Rollback(ctx))

	got, err := repo.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRollbackRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	row, err := repo.Set(ctx, core.NewText("first", "en"))
	require.NoError(t, err)

	unit := New(repo, nil)

	// Overwrite then remove the same row inside one unit of work. Replaying
	// inverses oldest-first would resurrect the overwrite; newest-first must
	// end on the original content.
	updated := row.WithMeta(*row.Meta)
	updated.Props = &core.TextProps{Content: "second", Language: "en"}
	_, err = unit.Set(ctx, updated)
	require.NoError(t, err)
	require.NoError(t, unit.Remove(ctx, row.ID()))
	require.Equal(t, 2, unit.Pending())

	require.NoError(t, unit.Rollback(ctx))

	got, err := repo.Get(ctx, row.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, &core.TextProps{Content: "first", Language: "en"}, got.Props)
}

func TestSetKeyedRecordsRestoreOnReplay(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	first, err := repo.SetKeyed(ctx, core.NewText("take one", "en"), "scene-7")
	require.NoError(t, err)

	unit := New(repo, nil)
	second, err := unit.SetKeyed(ctx, core.NewText("take two", "en"), "scene-7")
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	require.NoError(t, unit.Rollback(ctx))

	got, err := repo.Get(ctx, first.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Props, got.Props)
}

// faultyStore fails removes for one designated id until cleared.
type faultyStore struct {
	Store
	failID core.ID
	err    error
}

func (f *faultyStore) Remove(ctx context.Context, id core.ID) error {
	if f.err != nil && id == f.failID {
		return f.err
	}
	return f.Store.Remove(ctx, id)
}

func TestRollbackSuspendsOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	boom := errors.New("backend offline")
	store := &faultyStore{Store: repo}

	unit := New(store, nil)
	a, err := unit.Set(ctx, core.NewText("a", "en"))
	require.NoError(t, err)
	b, err := unit.Set(ctx, core.NewText("b", "en"))
	require.NoError(t, err)

	// Fail the newest compensation (remove of b).
	store.failID = b.ID()
	store.err = boom

	err = unit.Rollback(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "compensation 1")

	// Nothing was consumed: both compensations are retained for retry.
	assert.Equal(t, 2, unit.Pending())
	got, err := repo.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.NotNil(t, got, "older compensations must not run past the fault")

	// After the fault clears a retry finishes the rollback.
	store.err = nil
	require.NoError(t, unit.Rollback(ctx))
	assert.Equal(t, 0, unit.Pending())
	got, err = repo.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.Nil(t, got)
}
