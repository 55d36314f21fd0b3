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

// Package saga groups repository writes into a unit of work with
// compensation-based rollback. Every mutation records, before it runs, the
// inverse command that would undo it; Rollback replays those inverses in
// reverse order. There is no isolation: writes are visible to other readers
// the moment they land, and a rollback is itself a sequence of ordinary
// writes that can interleave with concurrent traffic.
package saga

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Store is the slice of the repository surface a saga drives.
type Store interface {
	Get(ctx context.Context, id core.ID) (*core.Entity, error)
	Set(ctx context.Context, e *core.Entity) (*core.Entity, error)
	Remove(ctx context.Context, id core.ID) error
}

// CompensationKind discriminates inverse commands.
type CompensationKind string

const (
	// CompensationRemove deletes an entity the saga created.
	CompensationRemove CompensationKind = "remove"
	// CompensationRestore rewrites the pre-image of an entity the saga
	// overwrote or deleted.
	CompensationRestore CompensationKind = "restore"
)

// Compensation is one recorded inverse command. The Entity field holds the
// exact pre-image for restores and is nil for removes.
type Compensation struct {
	Kind   CompensationKind
	ID     core.ID
	Entity *core.Entity
}

// Saga is a unit of work over a Store. It is not safe for concurrent use;
// each in-flight unit of work gets its own Saga.
type Saga struct {
	store  Store
	log    []Compensation
	logger *slog.Logger
}

// New starts an empty unit of work over store.
func New(store Store, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{store: store, logger: logger}
}

// preImage looks up the stored row for id. The compensation for a write is
// derived from what was there before: nothing means the inverse is a remove,
// an existing row means the inverse restores it verbatim.
func (s *Saga) preImage(ctx context.Context, id core.ID) (Compensation, error) {
	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return Compensation{}, err
	}
	if prior == nil {
		return Compensation{Kind: CompensationRemove, ID: id}, nil
	}
	clone, err := storage.CloneEntity(prior)
	if err != nil {
		return Compensation{}, err
	}
	return Compensation{Kind: CompensationRestore, ID: id, Entity: clone}, nil
}

// Set writes e through the store and records its inverse. Drafts are
// materialized by the store; their inverse is always a remove since the
// minted id cannot collide with an existing row.
func (s *Saga) Set(ctx context.Context, e *core.Entity) (*core.Entity, error) {
	if e == nil {
		return nil, core.ErrInvalidEntity
	}

	var comp Compensation
	if e.Declared() {
		var err error
		comp, err = s.preImage(ctx, e.ID())
		if err != nil {
			return nil, err
		}
	}

	stored, err := s.store.Set(ctx, e)
	if err != nil {
		return nil, err
	}
	if !e.Declared() {
		comp = Compensation{Kind: CompensationRemove, ID: stored.ID()}
	}
	s.log = append(s.log, comp)
	return stored, nil
}

// SetKeyed is Set for a draft carrying an idempotency key. The deterministic
// id is computed up front so a replay that lands on an existing row records a
// restore of that row, not a remove.
func (s *Saga) SetKeyed(ctx context.Context, e *core.Entity, idempotencyKey string) (*core.Entity, error) {
	if e == nil || e.Props == nil {
		return nil, core.ErrInvalidEntity
	}
	if e.Declared() {
		return s.Set(ctx, e)
	}

	id := core.IDFromIdempotencyKey(e.Props.EntityTag(), idempotencyKey)
	comp, err := s.preImage(ctx, id)
	if err != nil {
		return nil, err
	}

	keyed, ok := s.store.(interface {
		SetKeyed(ctx context.Context, e *core.Entity, idempotencyKey string) (*core.Entity, error)
	})
	if !ok {
		return nil, ErrKeyedWritesUnsupported
	}
	stored, err := keyed.SetKeyed(ctx, e, idempotencyKey)
	if err != nil {
		return nil, err
	}
	s.log = append(s.log, comp)
	return stored, nil
}

// Remove deletes id through the store and records its inverse. Removing an
// absent id records nothing since there is nothing to undo.
func (s *Saga) Remove(ctx context.Context, id core.ID) error {
	comp, err := s.preImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	if comp.Kind == CompensationRestore {
		s.log = append(s.log, comp)
	}
	return nil
}

// Pending returns how many compensations are currently recorded.
func (s *Saga) Pending() int {
	return len(s.log)
}

// Commit finalizes the unit of work by discarding the compensation log. The
// writes themselves were already durable as they happened.
func (s *Saga) Commit() {
	s.log = nil
}

// Rollback replays the recorded compensations newest-first. On the first
// compensation that fails it stops, keeps that compensation and everything
// older in the log, and returns the failure wrapped with its position, so a
// caller can retry Rollback after the fault clears.
func (s *Saga) Rollback(ctx context.Context) error {
	for len(s.log) > 0 {
		i := len(s.log) - 1
		comp := s.log[i]

		var err error
		switch comp.Kind {
		case CompensationRemove:
			err = s.store.Remove(ctx, comp.ID)
		case CompensationRestore:
			_, err = s.store.Set(ctx, comp.Entity)
		default:
			err = ErrUnknownCompensation
		}
		if err != nil {
			s.logger.Error("compensation failed, rollback suspended",
				"kind", comp.Kind, "id", comp.ID, "remaining", len(s.log))
			return fmt.Errorf("compensation %d (%s %s): %w", i, comp.Kind, comp.ID, err)
		}
		s.log = s.log[:i]
	}
	return nil
}
