package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Index is the identity index persisted in its own Badger keyspace. It is a
// dedicated single-purpose store mapping id to owning tag; writing an index
// entry and writing the entity document are two separate operations with no
// atomic guarantee, a limitation surfaced (not repaired) by Entries-based
// audits.
type Index struct {
	backend *Backend
}

var _ storage.IdentityIndex = (*Index)(nil)

// NewIndex creates an identity index on a shared backend.
func NewIndex(backend *Backend) *Index {
	return &Index{backend: backend}
}

// Allocate generates a fresh id owned by tag and records the mapping.
func (x *Index) Allocate(ctx context.Context, tag core.Tag) (core.ID, error) {
	id := core.NewID()
	return id, x.Bind(ctx, id, tag)
}

// Bind records that id is owned by tag.
func (x *Index) Bind(ctx context.Context, id core.ID, tag core.Tag) error {
	value := storage.MarshalIndexEntry(storage.IndexEntry{
		ID:      id,
		Tag:     tag,
		BoundAt: time.Now().UTC(),
	})
	return x.backend.WithTx(func(tx *badger.Txn) error {
		// Rebinding to the same tag keeps the original audit timestamp.
		item, gerr := tx.Get(makeIndexKey(id))
		if gerr == nil {
			var existing storage.IndexEntry
			verr := item.Value(func(val []byte) error {
				var uerr error
				existing, uerr = storage.UnmarshalIndexEntry(val)
				return uerr
			})
			if verr == nil && existing.Tag == tag {
				return nil
			}
		} else if !errors.Is(gerr, badger.ErrKeyNotFound) {
			return gerr
		}
		if err := tx.Set(makeIndexKey(id), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Resolve returns the owning tag for id.
func (x *Index) Resolve(ctx context.Context, id core.ID) (core.Tag, bool, error) {
	var (
		entry storage.IndexEntry
		found bool
	)
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalIndexEntry(val)
			return err
		})
	}, false)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return entry.Tag, true, nil
}

// Unbind forgets the mapping for id.
func (x *Index) Unbind(ctx context.Context, id core.ID) error {
	return x.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeIndexKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Entries lists all mappings in key order.
func (x *Index) Entries(ctx context.Context) ([]storage.IndexEntry, error) {
	var out []storage.IndexEntry
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			id := idFromIndexKey(item.Key())
			err := item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalIndexEntry(val)
				if err != nil {
					return err
				}
				entry.ID = id
				out = append(out, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}
