// Package memory provides the in-memory reference backend: one adapter per
// tag over a mutex-guarded map, plus a map-backed identity index. It defines
// the observable semantics the document backend must reproduce, and doubles
// as the fast backend for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Adapter is a mutex-guarded in-memory collection for one entity tag.
// Entities are deep-copied on the way in and out, so callers can never alias
// store state.
type Adapter struct {
	tag   core.Tag
	mu    sync.RWMutex
	items map[core.ID]*core.Entity
	order []core.ID // insertion order, the scan order before sorting
}

var _ storage.Adapter = (*Adapter)(nil)

// NewAdapter creates an in-memory adapter for the tag.
func NewAdapter(tag core.Tag) *Adapter {
	return &Adapter{
		tag:   tag,
		items: make(map[core.ID]*core.Entity),
	}
}

// Tag returns the entity tag this adapter owns.
func (a *Adapter) Tag() core.Tag { return a.tag }

// Get retrieves an entity by id, or (nil, nil) when absent.
func (a *Adapter) Get(ctx context.Context, id core.ID) (*core.Entity, error) {
	a.mu.RLock()
	e, ok := a.items[id]
	a.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return storage.CloneEntity(e)
}

// Set upserts a declared entity keyed by its id. Last write wins.
func (a *Adapter) Set(ctx context.Context, e *core.Entity) (*core.Entity, error) {
	if e == nil || !e.Declared() {
		return nil, storage.ErrDraftEntity
	}
	if e.Tag() != a.tag {
		return nil, fmt.Errorf("%w: %s into %s", storage.ErrTagMismatch, e.Tag(), a.tag)
	}
	stored, err := storage.CloneEntity(e)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if _, exists := a.items[stored.ID()]; !exists {
		a.order = append(a.order, stored.ID())
	}
	a.items[stored.ID()] = stored
	a.mu.Unlock()

	return storage.CloneEntity(stored)
}

// Remove deletes by id; removing an absent id is a no-op.
func (a *Adapter) Remove(ctx context.Context, id core.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.items[id]; !ok {
		return nil
	}
	delete(a.items, id)
	for i, existing := range a.order {
		if existing == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query scans the collection in insertion order and applies the reference
// filter/sort/pagination semantics.
func (a *Adapter) Query(ctx context.Context, q storage.Query) ([]*core.Entity, error) {
	a.mu.RLock()
	snapshot := make([]*core.Entity, 0, len(a.order))
	for _, id := range a.order {
		snapshot = append(snapshot, a.items[id])
	}
	a.mu.RUnlock()

	out := storage.ApplyQuery(snapshot, q)
	cloned := make([]*core.Entity, len(out))
	for i, e := range out {
		c, err := storage.CloneEntity(e)
		if err != nil {
			return nil, err
		}
		cloned[i] = c
	}
	return cloned, nil
}

// Batch applies items in order, best-effort. The first failing item stops
// the batch; items already applied stay applied and the failure is reported
// through the result status.
func (a *Adapter) Batch(ctx context.Context, items []storage.BatchItem) (storage.BatchResult, error) {
	for _, item := range items {
		var err error
		switch item.Op {
		case storage.BatchSet:
			if item.Entity == nil {
				err = storage.ErrInvalidBatchItem
			} else {
				_, err = a.Set(ctx, item.Entity)
			}
		case storage.BatchRemove:
			if item.ID.IsZero() {
				err = storage.ErrInvalidBatchItem
			} else {
				err = a.Remove(ctx, item.ID)
			}
		default:
			err = storage.ErrInvalidBatchItem
		}
		if err != nil {
			return storage.BatchResult{
				Status:   storage.BatchFailed,
				Time:     time.Now().UTC(),
				Failures: []core.Tag{a.tag},
			}, err
		}
	}
	return storage.BatchResult{Status: storage.BatchSuccessful, Time: time.Now().UTC()}, nil
}

// Len returns the number of stored entities.
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}
