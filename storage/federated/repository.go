// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package federated presents the per-tag adapters as one logical store.
// Bare ids are routed through the identity index, drafts are materialized
// on write, and cross-tag queries and batches fan out to the adapters on a
// shared worker pool.
package federated

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Repository federates a set of tag-scoped adapters behind the
// storage.Repository contract. It is safe for concurrent use.
type Repository struct {
	adapters  map[core.Tag]storage.Adapter
	index     storage.IdentityIndex
	entityCtx *core.Context
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository) error

// WithPoolSize sets the worker pool size for cross-tag fan-out.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Repository) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithEntityContext sets the context used to materialize drafts on write.
// Default is core.NewContext().
func WithEntityContext(entityCtx *core.Context) Option {
	return func(r *Repository) error {
		if entityCtx == nil {
			entityCtx = core.NewContext()
		}
		r.entityCtx = entityCtx
		return nil
	}
}

// NewRepository builds a federated repository over adapters, keyed by the tag
// each adapter reports. Every adapter tag must be a known tag, and the whole
// registry is validated here so a routing failure can never surface later as
// a misdirected write.
func NewRepository(
	adapters []storage.Adapter,
	index storage.IdentityIndex,
	opts ...Option,
) (*Repository, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}

	registry := make(map[core.Tag]storage.Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, ErrNilAdapter
		}
		tag := a.Tag()
		if !core.KnownTag(tag) {
			return nil, core.ErrUnknownTag
		}
		if _, dup := registry[tag]; dup {
			return nil, ErrDuplicateAdapter
		}
		registry[tag] = a
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		adapters:  registry,
		index:     index,
		entityCtx: core.NewContext(),
		pool:      pool,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.pool.Release()
			return nil, err
		}
	}

	return r, nil
}

// tags returns the registered tags in deterministic order. Fan-out results
// are joined in this order so repeated queries are reproducible.
func (r *Repository) tags() []core.Tag {
	tags := make([]core.Tag, 0, len(r.adapters))
	for tag := range r.adapters {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (r *Repository) adapterFor(tag core.Tag) (storage.Adapter, error) {
	a, ok := r.adapters[tag]
	if !ok {
		return nil, storage.ErrUnregisteredTag
	}
	return a, nil
}

// Get resolves id through the identity index and reads from the owning
// adapter. An unmapped id yields (nil, nil), same as an absent entity.
func (r *Repository) Get(ctx context.Context, id core.ID) (*core.Entity, error) {
	tag, ok, err := r.index.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	a, err := r.adapterFor(tag)
	if err != nil {
		return nil, err
	}
	return a.Get(ctx, id)
}

// Set materializes e if it is still a draft, binds its id in the identity
// index, then writes it to the adapter owning its tag. The index entry is
// written first so a crash mid-write leaves a resolvable id rather than an
// unreachable entity.
func (r *Repository) Set(ctx context.Context, e *core.Entity) (*core.Entity, error) {
	declared, err := r.entityCtx.DeclareEntity(e)
	if err != nil {
		return nil, err
	}
	a, err := r.adapterFor(declared.Tag())
	if err != nil {
		return nil, err
	}
	if err := r.index.Bind(ctx, declared.ID(), declared.Tag()); err != nil {
		return nil, err
	}
	return a.Set(ctx, declared)
}

// SetKeyed is Set with an idempotency key: a draft gets the deterministic id
// derived from its tag and key, so replaying the same logical write lands on
// the same row instead of minting a duplicate.
func (r *Repository) SetKeyed(ctx context.Context, e *core.Entity, idempotencyKey string) (*core.Entity, error) {
	declared, err := r.entityCtx.DeclareEntityKeyed(e, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return r.Set(ctx, declared)
}

// Remove resolves id, deletes the entity from the owning adapter, and unbinds
// the index entry. Removing an unmapped id is a no-op.
func (r *Repository) Remove(ctx context.Context, id core.ID) error {
	tag, ok, err := r.index.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	a, err := r.adapterFor(tag)
	if err != nil {
		return err
	}
	if err := a.Remove(ctx, id); err != nil {
		return err
	}
	return r.index.Unbind(ctx, id)
}

// Query fans q out to every registered adapter in parallel and concatenates
// the per-adapter results in tag order. Pagination applies per adapter, not
// across the concatenation.
func (r *Repository) Query(ctx context.Context, q storage.Query) ([]*core.Entity, error) {
	tags := r.tags()

	type shard struct {
		entities []*core.Entity
		err      error
	}
	shards := make([]shard, len(tags))

	var wg sync.WaitGroup
	for i, tag := range tags {
		wg.Add(1)
		if err := r.pool.Submit(func() {
			defer wg.Done()
			shards[i].entities, shards[i].err = r.adapters[tag].Query(ctx, q)
		}); err != nil {
			wg.Done()
			shards[i].err = err
		}
	}
	wg.Wait()

	var out []*core.Entity
	for i, s := range shards {
		if s.err != nil {
			r.logger.Error("federated query shard failed", "tag", tags[i], "err", s.err)
			return nil, s.err
		}
		out = append(out, s.entities...)
	}
	return out, nil
}

// QueryTag delegates to exactly one adapter.
func (r *Repository) QueryTag(ctx context.Context, tag core.Tag, q storage.Query) ([]*core.Entity, error) {
	a, err := r.adapterFor(tag)
	if err != nil {
		return nil, err
	}
	return a.Query(ctx, q)
}

// Batch partitions items by owning tag and applies the partitions in
// parallel, one adapter batch each. Sets are routed by the entity's declared
// tag after materialization; removes are routed through the identity index,
// and removes of unmapped ids are dropped as no-ops. Each partition is
// best-effort on its own: a failed partition never rolls back a successful
// one, and the combined result lists every failed tag.
func (r *Repository) Batch(ctx context.Context, items []storage.BatchItem) (storage.BatchResult, error) {
	partitions := make(map[core.Tag][]storage.BatchItem)
	for _, item := range items {
		switch item.Op {
		case storage.BatchSet:
			declared, err := r.entityCtx.DeclareEntity(item.Entity)
			if err != nil {
				return storage.BatchResult{Status: storage.BatchFailed, Time: time.Now().UTC()}, err
			}
			if _, err := r.adapterFor(declared.Tag()); err != nil {
				return storage.BatchResult{Status: storage.BatchFailed, Time: time.Now().UTC()}, err
			}
			if err := r.index.Bind(ctx, declared.ID(), declared.Tag()); err != nil {
				return storage.BatchResult{Status: storage.BatchFailed, Time: time.Now().UTC()}, err
			}
			partitions[declared.Tag()] = append(partitions[declared.Tag()], storage.SetItem(declared))
		case storage.BatchRemove:
			tag, ok, err := r.index.Resolve(ctx, item.ID)
			if err != nil {
				return storage.BatchResult{Status: storage.BatchFailed, Time: time.Now().UTC()}, err
			}
			if !ok {
				continue
			}
			partitions[tag] = append(partitions[tag], item)
		default:
			return storage.BatchResult{Status: storage.BatchFailed, Time: time.Now().UTC()},
				storage.ErrInvalidBatchItem
		}
	}

	tags := make([]core.Tag, 0, len(partitions))
	for tag := range partitions {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	type outcome struct {
		result storage.BatchResult
		err    error
	}
	outcomes := make([]outcome, len(tags))

	var wg sync.WaitGroup
	for i, tag := range tags {
		wg.Add(1)
		if err := r.pool.Submit(func() {
			defer wg.Done()
			outcomes[i].result, outcomes[i].err = r.adapters[tag].Batch(ctx, partitions[tag])
		}); err != nil {
			wg.Done()
			outcomes[i].err = err
		}
	}
	wg.Wait()

	combined := storage.BatchResult{Status: storage.BatchSuccessful, Time: time.Now().UTC()}
	var firstErr error
	for i, o := range outcomes {
		if o.err != nil {
			combined.Status = storage.BatchFailed
			combined.Failures = append(combined.Failures, tags[i])
			if firstErr == nil {
				firstErr = o.err
			}
			r.logger.Error("batch partition failed", "tag", tags[i], "err", o.err)

			// Unbind ids whose set never landed so the index does not
			// advertise entities that were rolled off by the failure.
			for _, item := range partitions[tags[i]] {
				if item.Op != storage.BatchSet {
					continue
				}
				if stored, gerr := r.adapters[tags[i]].Get(ctx, item.Entity.ID()); gerr == nil && stored == nil {
					if uerr := r.index.Unbind(ctx, item.Entity.ID()); uerr != nil {
						r.logger.Error("unbind after failed batch", "id", item.Entity.ID(), "err", uerr)
					}
				}
			}
		}
	}
	if firstErr != nil {
		return combined, firstErr
	}
	return combined, nil
}

// Release frees the worker pool. The repository must not be used after
// calling Release.
func (r *Repository) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
