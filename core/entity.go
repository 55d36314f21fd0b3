package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is an opaque unique identifier for domain entities. Ids live in a single
// space shared by every collection, which is what lets the identity index
// route a bare id to its owning tag.
type ID string

// IsZero returns true if the ID is empty.
func (id ID) IsZero() bool { return id == "" }

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// NewID generates a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// IDFromIdempotencyKey derives a deterministic ID from a tag and an
// idempotency key using BLAKE2b hashing. Identical (tag, key) pairs always
// produce the same id, so a retried declaration resolves to the original
// entity instead of a duplicate row. The derived id space (32 hex chars) is
// disjoint from NewID's UUID space, so keyed and unkeyed ids never collide.
func IDFromIdempotencyKey(tag Tag, key string) ID {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(string(tag)))
	h.Write([]byte{':'})
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return ID(hex.EncodeToString(sum))
}

// Tag is the stable physical collection key declared by each entity type.
type Tag string

// Meta carries the lifecycle metadata an entity gains when it is declared.
// Props never change an entity's identity; once assigned, ID is immutable.
type Meta struct {
	ID             ID        `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// Touched returns a copy of the meta with UpdatedAt set to t. Adapters store
// entities verbatim; refreshing the update timestamp is an explicit caller
// decision so that pre-image restores stay byte-faithful.
func (m Meta) Touched(t time.Time) Meta {
	m.UpdatedAt = t.UTC()
	return m
}

// Props is the closed sum of entity property shapes, one variant per tag.
// Implementations are plain structs compared by value.
type Props interface {
	// EntityTag returns the physical collection key for this shape.
	EntityTag() Tag
	// SchemaVersion returns the schema generation of this shape.
	SchemaVersion() int
}

// Entity is an identity-bearing record: immutable business Props plus
// separate lifecycle Meta. An entity with nil Meta is a draft; with Meta it
// is declared.
type Entity struct {
	Meta  *Meta `json:"meta,omitempty"`
	Props Props `json:"props"`
}

// Tag returns the entity's physical collection key.
func (e *Entity) Tag() Tag {
	if e == nil || e.Props == nil {
		return ""
	}
	return e.Props.EntityTag()
}

// Version returns the entity's schema generation.
func (e *Entity) Version() int {
	if e == nil || e.Props == nil {
		return 0
	}
	return e.Props.SchemaVersion()
}

// Declared returns true once lifecycle metadata has been assigned.
func (e *Entity) Declared() bool {
	return e != nil && e.Meta != nil
}

// ID returns the entity's identifier, or the zero ID for a draft.
func (e *Entity) ID() ID {
	if e == nil || e.Meta == nil {
		return ""
	}
	return e.Meta.ID
}

// CreatedAt returns the declaration timestamp, or the zero time for a draft.
func (e *Entity) CreatedAt() time.Time {
	if e == nil || e.Meta == nil {
		return time.Time{}
	}
	return e.Meta.CreatedAt
}

// WithMeta returns a declared copy of the entity carrying the given meta.
// The receiver is not mutated.
func (e *Entity) WithMeta(m Meta) *Entity {
	return &Entity{Meta: &m, Props: e.Props}
}
