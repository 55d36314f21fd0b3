package storage

import (
	"context"
	"time"

	"github.com/poiesic/classgraph/core"
)

// Adapter is the uniform contract every physical collection implements, one
// adapter per entity tag. Implementations must be safe for concurrent use.
type Adapter interface {
	// Tag returns the entity tag this adapter owns.
	Tag() core.Tag

	// Get retrieves an entity by id. Returns (nil, nil) when absent.
	Get(ctx context.Context, id core.ID) (*core.Entity, error)

	// Set upserts a declared entity keyed by its id and returns the stored
	// value. Writes are last-write-wins; there is no version check.
	Set(ctx context.Context, e *core.Entity) (*core.Entity, error)

	// Remove deletes an entity by id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id core.ID) error

	// Query evaluates a query against the collection using the package's
	// reference semantics: filter tree, stable multi-key sort, page-index
	// pagination.
	Query(ctx context.Context, q Query) ([]*core.Entity, error)

	// Batch applies items best-effort. Items already applied when a later
	// item fails are NOT rolled back; the failure is reported structurally.
	Batch(ctx context.Context, items []BatchItem) (BatchResult, error)
}

// Repository is the single logical store spanning all adapters. Get and
// Remove route bare ids through the identity index; Set dispatches on the
// entity's own declared tag and materializes drafts on the way in.
type Repository interface {
	Get(ctx context.Context, id core.ID) (*core.Entity, error)
	Set(ctx context.Context, e *core.Entity) (*core.Entity, error)
	Remove(ctx context.Context, id core.ID) error

	// Query fans the query out to every registered adapter and concatenates
	// the results. Callers must not assume any cross-adapter ordering beyond
	// each adapter's own sort.
	Query(ctx context.Context, q Query) ([]*core.Entity, error)

	// QueryTag delegates to exactly one adapter.
	QueryTag(ctx context.Context, tag core.Tag, q Query) ([]*core.Entity, error)

	// Batch partitions items by tag and applies each partition against its
	// adapter. Partial cross-tag application is possible and is reported,
	// never hidden.
	Batch(ctx context.Context, items []BatchItem) (BatchResult, error)
}

// IdentityIndex maps an id to the tag of the collection that owns it. It is
// the only way a bare get/remove can be routed without the caller knowing the
// physical collection.
//
// Writing an index entry and writing the entity itself are two separate
// operations with no atomic guarantee. A crash between them leaves an orphan
// unreachable by id; the index never repairs that silently; Entries exists
// so an audit can surface it for manual reconciliation.
type IdentityIndex interface {
	// Allocate generates a fresh id owned by tag and records the mapping.
	Allocate(ctx context.Context, tag core.Tag) (core.ID, error)

	// Bind records that id is owned by tag. Binding is an upsert: rebinding
	// an id to the same tag is a no-op.
	Bind(ctx context.Context, id core.ID, tag core.Tag) error

	// Resolve returns the owning tag for id, or ok=false when unmapped.
	Resolve(ctx context.Context, id core.ID) (tag core.Tag, ok bool, err error)

	// Unbind forgets the mapping for id. Unbinding an unmapped id is a no-op.
	Unbind(ctx context.Context, id core.ID) error

	// Entries lists all mappings, for audits.
	Entries(ctx context.Context) ([]IndexEntry, error)
}

// IndexEntry is one id-to-tag mapping with its audit timestamp.
type IndexEntry struct {
	ID      core.ID
	Tag     core.Tag
	BoundAt time.Time
}

// BatchOp discriminates batch items.
type BatchOp string

const (
	// BatchSet upserts Entity.
	BatchSet BatchOp = "set"
	// BatchRemove deletes by ID.
	BatchRemove BatchOp = "remove"
)

// BatchItem is one operation in a batch.
type BatchItem struct {
	Op     BatchOp
	Entity *core.Entity // set
	ID     core.ID      // remove
}

// SetItem builds a batch upsert.
func SetItem(e *core.Entity) BatchItem {
	return BatchItem{Op: BatchSet, Entity: e}
}

// RemoveItem builds a batch removal.
func RemoveItem(id core.ID) BatchItem {
	return BatchItem{Op: BatchRemove, ID: id}
}

// BatchStatus is the overall outcome of a batch.
type BatchStatus string

const (
	BatchSuccessful BatchStatus = "successful"
	BatchFailed     BatchStatus = "failed"
)

// BatchResult reports a batch outcome. Failures lists the tags whose
// partition failed; partitions of other tags may still have been applied.
type BatchResult struct {
	Status   BatchStatus
	Time     time.Time
	Failures []core.Tag
}
