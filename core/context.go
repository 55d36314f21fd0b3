package core

import (
	"fmt"
	"time"
)

// MetaSeed carries the optional fields of a meta under construction. Zero
// fields are defaulted by CreateMeta.
type MetaSeed struct {
	ID             ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IdempotencyKey string
}

// Context materializes drafts into declared entities. Identity assignment is
// deterministic for idempotency-keyed drafts, so declaring the same draft
// twice in the same context (or after a crash and retry) resolves to the same
// id instead of creating a duplicate row.
type Context struct {
	clock func() time.Time
	newID func() ID
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) ContextOption {
	return func(c *Context) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDSource overrides generation of fresh (non-idempotent) ids.
func WithIDSource(newID func() ID) ContextOption {
	return func(c *Context) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewContext creates an entity context with real time and random ids.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		clock: func() time.Time { return time.Now().UTC() },
		newID: NewID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMeta builds a meta from the seed, defaulting timestamps to now and
// the id to a fresh identifier when absent.
func (c *Context) CreateMeta(seed MetaSeed) Meta {
	now := c.clock().UTC()
	m := Meta{
		ID:             seed.ID,
		CreatedAt:      seed.CreatedAt,
		UpdatedAt:      seed.UpdatedAt,
		IdempotencyKey: seed.IdempotencyKey,
	}
	if m.ID.IsZero() {
		m.ID = c.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	} else {
		m.CreatedAt = m.CreatedAt.UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	} else {
		m.UpdatedAt = m.UpdatedAt.UTC()
	}
	return m
}

// DeclareEntity materializes a draft. An already-declared, structurally valid
// entity passes through unchanged. Drafts receive fresh meta; a draft-level
// idempotency key yields the key-derived id, so a retried declaration
// resolves to the original entity. The draft itself is never mutated.
func (c *Context) DeclareEntity(e *Entity) (*Entity, error) {
	return c.DeclareEntityKeyed(e, "")
}

// DeclareEntityKeyed is DeclareEntity with an explicit idempotency key for
// the draft path. An empty key assigns a fresh random id.
func (c *Context) DeclareEntityKeyed(e *Entity, idempotencyKey string) (*Entity, error) {
	if err := ValidateEntity(e); err != nil {
		return nil, err
	}
	if e.Declared() {
		if e.Meta.ID.IsZero() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEntity, ErrMissingID)
		}
		return e, nil
	}

	seed := MetaSeed{IdempotencyKey: idempotencyKey}
	if idempotencyKey != "" {
		seed.ID = IDFromIdempotencyKey(e.Tag(), idempotencyKey)
	}
	meta := c.CreateMeta(seed)
	return e.WithMeta(meta), nil
}

// Now exposes the context clock so collaborators share one time source.
func (c *Context) Now() time.Time {
	return c.clock().UTC()
}
