// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/classgraph/core"
)

// Envelope is the fixed-shape persisted form of an entity: the tag, schema
// version and lifecycle metadata in MUS, with the variably shaped props as an
// embedded JSON payload. Timestamps are UTC nanoseconds so a stored entity
// round-trips byte-faithfully.
type Envelope struct {
	Tag            string
	Version        int64
	ID             string
	CreatedAt      int64
	UpdatedAt      int64
	IdempotencyKey string
	Props          string
}

type envelopeSer struct{}

// EnvelopeMUS serializes envelopes in the MUS format.
var EnvelopeMUS = envelopeSer{}

func (envelopeSer) Size(e Envelope) (size int) {
	size = ord.String.Size(e.Tag)
	size += varint.Int64.Size(e.Version)
	size += ord.String.Size(e.ID)
	size += varint.Int64.Size(e.CreatedAt)
	size += varint.Int64.Size(e.UpdatedAt)
	size += ord.String.Size(e.IdempotencyKey)
	size += ord.String.Size(e.Props)
	return size
}

func (envelopeSer) Marshal(e Envelope, bs []byte) (n int) {
	n = ord.String.Marshal(e.Tag, bs)
	n += varint.Int64.Marshal(e.Version, bs[n:])
	n += ord.String.Marshal(e.ID, bs[n:])
	n += varint.Int64.Marshal(e.CreatedAt, bs[n:])
	n += varint.Int64.Marshal(e.UpdatedAt, bs[n:])
	n += ord.String.Marshal(e.IdempotencyKey, bs[n:])
	n += ord.String.Marshal(e.Props, bs[n:])
	return n
}

func (envelopeSer) Unmarshal(bs []byte) (e Envelope, n int, err error) {
	var n1 int
	e.Tag, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Version, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.ID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.CreatedAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.UpdatedAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.IdempotencyKey, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Props, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

// MarshalEntity serializes a declared entity to its persisted envelope form.
func MarshalEntity(e *core.Entity) ([]byte, error) {
	if e == nil || !e.Declared() {
		return nil, ErrDraftEntity
	}
	props, err := json.Marshal(e.Props)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	env := Envelope{
		Tag:            string(e.Tag()),
		Version:        int64(e.Version()),
		ID:             string(e.Meta.ID),
		CreatedAt:      e.Meta.CreatedAt.UTC().UnixNano(),
		UpdatedAt:      e.Meta.UpdatedAt.UTC().UnixNano(),
		IdempotencyKey: e.Meta.IdempotencyKey,
		Props:          string(props),
	}
	buf := make([]byte, EnvelopeMUS.Size(env))
	EnvelopeMUS.Marshal(env, buf)
	return buf, nil
}

// UnmarshalEntity deserializes an entity from its envelope form, rejecting
// tags outside the closed catalog.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	env, _, err := EnvelopeMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	props, err := core.PropsFor(core.Tag(env.Tag))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(env.Props), props); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.Entity{
		Meta: &core.Meta{
			ID:             core.ID(env.ID),
			CreatedAt:      time.Unix(0, env.CreatedAt).UTC(),
			UpdatedAt:      time.Unix(0, env.UpdatedAt).UTC(),
			IdempotencyKey: env.IdempotencyKey,
		},
		Props: props,
	}, nil
}

type indexEntrySer struct{}

// IndexEntryMUS serializes identity-index values (tag + bind timestamp).
// The id is the store key, not part of the value.
var IndexEntryMUS = indexEntrySer{}

func (indexEntrySer) Size(e IndexEntry) int {
	return ord.String.Size(string(e.Tag)) + varint.Int64.Size(e.BoundAt.UTC().UnixNano())
}

func (indexEntrySer) Marshal(e IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(string(e.Tag), bs)
	n += varint.Int64.Marshal(e.BoundAt.UTC().UnixNano(), bs[n:])
	return n
}

func (indexEntrySer) Unmarshal(bs []byte) (e IndexEntry, n int, err error) {
	var (
		tag     string
		boundAt int64
		n1      int
	)
	tag, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	boundAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Tag = core.Tag(tag)
	e.BoundAt = time.Unix(0, boundAt).UTC()
	return
}

// MarshalIndexEntry serializes an identity-index value.
func MarshalIndexEntry(e IndexEntry) []byte {
	buf := make([]byte, IndexEntryMUS.Size(e))
	IndexEntryMUS.Marshal(e, buf)
	return buf
}

// UnmarshalIndexEntry deserializes an identity-index value.
func UnmarshalIndexEntry(data []byte) (IndexEntry, error) {
	e, _, err := IndexEntryMUS.Unmarshal(data)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return e, nil
}

// MarshalTag serializes a tag, for identity-index values.
func MarshalTag(tag core.Tag) []byte {
	buf := make([]byte, ord.String.Size(string(tag)))
	ord.String.Marshal(string(tag), buf)
	return buf
}

// UnmarshalTag deserializes a tag.
func UnmarshalTag(data []byte) (core.Tag, error) {
	s, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.Tag(s), nil
}

// CloneEntity deep-copies an entity through its envelope form, so adapters
// can hand out values that do not alias store state. Drafts clone shallowly
// (their props are immutable by convention).
func CloneEntity(e *core.Entity) (*core.Entity, error) {
	if e == nil {
		return nil, nil
	}
	if !e.Declared() {
		return &core.Entity{Props: e.Props}, nil
	}
	data, err := MarshalEntity(e)
	if err != nil {
		return nil, err
	}
	return UnmarshalEntity(data)
}
