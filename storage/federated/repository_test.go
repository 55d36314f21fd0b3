package federated

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
	"github.com/poiesic/classgraph/storage/memory"
)

func newTestRepository(t *testing.T) (*Repository, map[core.Tag]*memory.Adapter) {
	t.Helper()
	adapters := make(map[core.Tag]*memory.Adapter)
	list := make([]storage.Adapter, 0, len(core.Tags()))
	for _, tag := range core.Tags() {
		a := memory.NewAdapter(tag)
		adapters[tag] = a
		list = append(list, a)
	}
	repo, err := NewRepository(list, memory.NewIndex(), WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(repo.Release)
	return repo, adapters
}

func TestNewRepositoryValidation(t *testing.T) {
	index := memory.NewIndex()

	_, err := NewRepository(nil, index)
	assert.ErrorIs(t, err, ErrNoAdapters)

	_, err = NewRepository([]storage.Adapter{memory.NewAdapter(core.TagText)}, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewRepository([]storage.Adapter{
		memory.NewAdapter(core.TagText),
		memory.NewAdapter(core.TagText),
	}, index)
	assert.ErrorIs(t, err, ErrDuplicateAdapter)

	_, err = NewRepository([]storage.Adapter{memory.NewAdapter(core.Tag("bogus"))}, index)
	assert.ErrorIs(t, err, core.ErrUnknownTag)
}

func TestSetRoutesByTagAndBinds(t *testing.T) {
	ctx := context.Background()
	repo, adapters := newTestRepository(t)

	stored, err := repo.Set(ctx, core.NewText("hola", "es"))
	require.NoError(t, err)
	require.True(t, stored.Declared())

	// Landed in the right collection.
	assert.Equal(t, 1, adapters[core.TagText].Len())
	assert.Equal(t, 0, adapters[core.TagAudio].Len())

	// Routable by bare id.
	got, err := repo.Get(ctx, stored.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored.Props, got.Props)
}

func TestSetKeyedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, adapters := newTestRepository(t)

	first, err := repo.SetKeyed(ctx, core.NewText("once", "en"), "upload-42")
	require.NoError(t, err)
	second, err := repo.SetKeyed(ctx, core.NewText("once again", "en"), "upload-42")
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, adapters[core.TagText].Len())
}

func TestGetUnknownID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	got, err := repo.Get(ctx, "never-bound")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveUnbinds(t *testing.T) {
	ctx := context.Background()
	repo, adapters := newTestRepository(t)

	stored, err := repo.Set(ctx, core.NewText("bye", "en"))
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, stored.ID()))
	assert.Equal(t, 0, adapters[core.TagText].Len())

	got, err := repo.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	// Second remove is a no-op.
	require.NoError(t, repo.Remove(ctx, stored.ID()))
}

func TestQueryFansOutInTagOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.Set(ctx, core.NewText("t", "en"))
	require.NoError(t, err)
	_, err = repo.Set(ctx, core.NewParticipant("sub-1", "Ada", "en"))
	require.NoError(t, err)
	_, err = repo.Set(ctx, core.NewClassroom("French A1", "fr", "A1"))
	require.NoError(t, err)

	all, err := repo.Query(ctx, storage.NewQuery().Build())
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Concatenation follows lexical tag order: classroom, participant, text.
	assert.Equal(t, core.TagClassroom, all[0].Tag())
	assert.Equal(t, core.TagParticipant, all[1].Tag())
	assert.Equal(t, core.TagText, all[2].Tag())
}

func TestQueryTag(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.Set(ctx, core.NewText("t", "en"))
	require.NoError(t, err)

	texts, err := repo.QueryTag(ctx, core.TagText, storage.NewQuery().Build())
	require.NoError(t, err)
	assert.Len(t, texts, 1)

	_, err = repo.QueryTag(ctx, core.Tag("bogus"), storage.NewQuery().Build())
	assert.ErrorIs(t, err, storage.ErrUnregisteredTag)
}

func TestBatchPartitionsByTag(t *testing.T) {
	ctx := context.Background()
	repo, adapters := newTestRepository(t)

	victim, err := repo.Set(ctx, core.NewText("gone soon", "en"))
	require.NoError(t, err)

	result, err := repo.Batch(ctx, []storage.BatchItem{
		storage.SetItem(core.NewText("kept", "en")),
		storage.SetItem(core.NewParticipant("sub-2", "Grace", "en")),
		storage.RemoveItem(victim.ID()),
		storage.RemoveItem("unmapped-id"), // dropped as a no-op
	})
	require.NoError(t, err)
	assert.Equal(t, storage.BatchSuccessful, result.Status)
	assert.Empty(t, result.Failures)

	assert.Equal(t, 1, adapters[core.TagText].Len())
	assert.Equal(t, 1, adapters[core.TagParticipant].Len())
}

// failingAdapter wraps a real adapter and fails every batch.
type failingAdapter struct {
	*memory.Adapter
	err error
}

func (f *failingAdapter) Batch(ctx context.Context, items []storage.BatchItem) (storage.BatchResult, error) {
	return storage.BatchResult{Status: storage.BatchFailed, Failures: []core.Tag{f.Tag()}}, f.err
}

func TestBatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk ate it")

	texts := &failingAdapter{Adapter: memory.NewAdapter(core.TagText), err: boom}
	participants := memory.NewAdapter(core.TagParticipant)
	repo, err := NewRepository(
		[]storage.Adapter{texts, participants},
		memory.NewIndex(),
		WithPoolSize(2),
	)
	require.NoError(t, err)
	t.Cleanup(repo.Release)

	result, err := repo.Batch(ctx, []storage.BatchItem{
		storage.SetItem(core.NewText("doomed", "en")),
		storage.SetItem(core.NewParticipant("sub-3", "Edsger", "nl")),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, storage.BatchFailed, result.Status)
	assert.Equal(t, []core.Tag{core.TagText}, result.Failures)

	// The healthy partition still applied and its writes are observable.
	assert.Equal(t, 1, participants.Len())
	assert.Equal(t, 0, texts.Len())
}
