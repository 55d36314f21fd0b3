package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Index is the map-backed identity index: id to owning tag.
type Index struct {
	mu      sync.RWMutex
	entries map[core.ID]storage.IndexEntry
}

var _ storage.IdentityIndex = (*Index)(nil)

// NewIndex creates an empty in-memory identity index.
func NewIndex() *Index {
	return &Index{entries: make(map[core.ID]storage.IndexEntry)}
}

// Allocate generates a fresh id owned by tag and records the mapping.
func (x *Index) Allocate(ctx context.Context, tag core.Tag) (core.ID, error) {
	id := core.NewID()
	return id, x.Bind(ctx, id, tag)
}

// Bind records that id is owned by tag.
func (x *Index) Bind(ctx context.Context, id core.ID, tag core.Tag) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if existing, ok := x.entries[id]; ok && existing.Tag == tag {
		return nil
	}
	x.entries[id] = storage.IndexEntry{ID: id, Tag: tag, BoundAt: time.Now().UTC()}
	return nil
}

// Resolve returns the owning tag for id.
func (x *Index) Resolve(ctx context.Context, id core.ID) (core.Tag, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.entries[id]
	if !ok {
		return "", false, nil
	}
	return entry.Tag, true, nil
}

// Unbind forgets the mapping for id.
func (x *Index) Unbind(ctx context.Context, id core.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
	return nil
}

// Entries lists all mappings ordered by id.
func (x *Index) Entries(ctx context.Context) ([]storage.IndexEntry, error) {
	x.mu.RLock()
	out := make([]storage.IndexEntry, 0, len(x.entries))
	for _, entry := range x.entries {
		out = append(out, entry)
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
