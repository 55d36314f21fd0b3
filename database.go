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

package classgraph

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/saga"
	"github.com/poiesic/classgraph/storage"
	"github.com/poiesic/classgraph/storage/badger"
	"github.com/poiesic/classgraph/storage/federated"
	"github.com/poiesic/classgraph/usage"
)

// Database is the composition root: one document backend, one adapter per
// entity tag, the identity index, and the federated repository over them.
type Database struct {
	backend  *badger.Backend
	adapters []*badger.Adapter
	repo     *federated.Repository
	index    storage.IdentityIndex
	location *time.Location
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	poolSize int
	location *time.Location
	logger   *slog.Logger
}

// WithInMemoryBackend keeps the document store off disk.
func WithInMemoryBackend() DatabaseOption {
	return func(o *databaseOptions) { o.inMemory = true }
}

// WithPoolSize bounds the federated fan-out workers.
func WithPoolSize(size int) DatabaseOption {
	return func(o *databaseOptions) { o.poolSize = size }
}

// WithLocation sets the timezone for quota window boundaries.
// Default is time.Local.
func WithLocation(loc *time.Location) DatabaseOption {
	return func(o *databaseOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens the store at filePath and wires an adapter for every
// known entity tag.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	tagAdapters := make([]*badger.Adapter, 0, len(core.Tags()))
	adapters := make([]storage.Adapter, 0, len(core.Tags()))
	for _, tag := range core.Tags() {
		adapter, err := badger.NewAdapter(backend, tag)
		if err != nil {
			backend.Close()
			return nil, err
		}
		tagAdapters = append(tagAdapters, adapter)
		adapters = append(adapters, adapter)
	}
	index := badger.NewIndex(backend)

	repoOpts := []federated.Option{federated.WithLogger(options.logger)}
	if options.poolSize > 0 {
		repoOpts = append(repoOpts, federated.WithPoolSize(options.poolSize))
	}
	repo, err := federated.NewRepository(adapters, index, repoOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:  backend,
		adapters: tagAdapters,
		repo:     repo,
		index:    index,
		location: options.location,
		logger:   options.logger,
	}, nil
}

// NewMemoryDatabase opens an in-memory database, for tests and tooling.
func NewMemoryDatabase(opts ...DatabaseOption) (*Database, error) {
	return NewDatabase("", append(opts, WithInMemoryBackend())...)
}

// Repository exposes the federated repository.
func (db *Database) Repository() *federated.Repository {
	return db.repo
}

// NewUnitOfWork starts a compensated unit of work over the repository.
func (db *Database) NewUnitOfWork() *saga.Saga {
	return saga.New(db.repo, db.logger)
}

// NewAuthorizer builds a quota authorizer reading through the repository.
// The database's configured location applies unless an option overrides it.
func (db *Database) NewAuthorizer(opts ...usage.AuthorizerOption) *usage.Authorizer {
	opts = append([]usage.AuthorizerOption{usage.WithLocation(db.location)}, opts...)
	return usage.NewAuthorizer(db.repo, opts...)
}

// NewReserver builds the reserve-audio service. A nil location means the
// database's configured location.
func (db *Database) NewReserver(loc *time.Location) *usage.Reserver {
	if loc == nil {
		loc = db.location
	}
	authorizer := db.NewAuthorizer(usage.WithLocation(loc), usage.WithLogger(db.logger))
	return usage.NewReserver(db.repo, authorizer, db.logger)
}

// Orphan is an identity-index entry whose entity is missing, or an entity
// carrying a tag its index entry disagrees with.
type Orphan struct {
	Entry  storage.IndexEntry
	Reason string
}

// Audit scans the identity index against the entity store and reports
// orphans. Index writes and entity writes are separate operations, so a
// crash between them can strand an entry; the audit surfaces those for
// manual reconciliation and repairs nothing itself.
func (db *Database) Audit(ctx context.Context) ([]Orphan, error) {
	entries, err := db.index.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []Orphan
	for _, entry := range entries {
		entity, err := db.repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case entity == nil:
			orphans = append(orphans, Orphan{Entry: entry, Reason: "entity missing"})
		case entity.Tag() != entry.Tag:
			orphans = append(orphans, Orphan{Entry: entry, Reason: "tag mismatch"})
		}
	}
	if len(orphans) > 0 {
		db.logger.Warn("identity index audit found orphans", "count", len(orphans))
	}
	return orphans, nil
}

// Close releases the repository's worker pool, the per-tag insertion
// sequences, and the backend.
func (db *Database) Close() error {
	db.repo.Release()
	for _, adapter := range db.adapters {
		if err := adapter.Close(); err != nil {
			db.logger.Warn("error releasing adapter sequence", "tag", adapter.Tag(), "err", err)
		}
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
