package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Stored document values carry an 8-byte insertion sequence before the
// entity envelope. Keys are random ids, so key order says nothing about
// insertion order; the sequence is what fixes the scan order.
const seqHeaderLen = 8

func wrapDocument(seqNo uint64, envelope []byte) []byte {
	buf := make([]byte, seqHeaderLen+len(envelope))
	binary.BigEndian.PutUint64(buf, seqNo)
	copy(buf[seqHeaderLen:], envelope)
	return buf
}

func unwrapDocument(val []byte) (uint64, []byte, error) {
	if len(val) < seqHeaderLen {
		return 0, nil, fmt.Errorf("%w: truncated document value", storage.ErrSerializationFailed)
	}
	return binary.BigEndian.Uint64(val), val[seqHeaderLen:], nil
}

// Adapter is the document-store collection for one entity tag.
type Adapter struct {
	backend *Backend
	tag     core.Tag
	seq     *badger.Sequence
}

var _ storage.Adapter = (*Adapter)(nil)

// NewAdapter creates a document adapter for the tag on a shared backend.
func NewAdapter(backend *Backend, tag core.Tag) (*Adapter, error) {
	seq, err := backend.GetSequence(makeSequenceName(tag))
	if err != nil {
		return nil, err
	}
	return &Adapter{backend: backend, tag: tag, seq: seq}, nil
}

// Tag returns the entity tag this adapter owns.
func (a *Adapter) Tag() core.Tag { return a.tag }

// Close releases the insertion sequence.
func (a *Adapter) Close() error {
	return a.seq.Release()
}

// Get retrieves an entity document by id, or (nil, nil) when absent.
func (a *Adapter) Get(ctx context.Context, id core.ID) (*core.Entity, error) {
	var entity *core.Entity
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntityKey(a.tag, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			_, envelope, err := unwrapDocument(val)
			if err != nil {
				return err
			}
			entity, err = storage.UnmarshalEntity(envelope)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// insertionSeq returns the document's existing insertion sequence, so an
// overwrite keeps its scan position, or leases the next one for a new row.
func (a *Adapter) insertionSeq(tx *badger.Txn, key []byte) (uint64, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return a.seq.Next()
	}
	if err != nil {
		return 0, err
	}
	var seqNo uint64
	err = item.Value(func(val []byte) error {
		n, _, uerr := unwrapDocument(val)
		seqNo = n
		return uerr
	})
	return seqNo, err
}

// Set upserts a declared entity document keyed by its id. Last write wins.
func (a *Adapter) Set(ctx context.Context, e *core.Entity) (*core.Entity, error) {
	if e == nil || !e.Declared() {
		return nil, storage.ErrDraftEntity
	}
	if e.Tag() != a.tag {
		return nil, fmt.Errorf("%w: %s into %s", storage.ErrTagMismatch, e.Tag(), a.tag)
	}
	value, err := storage.MarshalEntity(e)
	if err != nil {
		return nil, err
	}
	err = a.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEntityKey(a.tag, e.ID())
		seqNo, err := a.insertionSeq(tx, key)
		if err != nil {
			return err
		}
		if err := tx.Set(key, wrapDocument(seqNo, value)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalEntity(value)
}

// Remove deletes an entity document; removing an absent id is a no-op.
func (a *Adapter) Remove(ctx context.Context, id core.ID) error {
	return a.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeEntityKey(a.tag, id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Query scans the tag's key prefix, replays the documents in insertion
// order, and applies the shared reference semantics. Without the replay an
// unsorted query would page in key order, which the reference backend does
// not do.
func (a *Adapter) Query(ctx context.Context, q storage.Query) ([]*core.Entity, error) {
	type row struct {
		seq    uint64
		entity *core.Entity
	}
	var rows []row
	err := a.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntityScanPrefix(a.tag)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				seqNo, envelope, err := unwrapDocument(val)
				if err != nil {
					return err
				}
				entity, err := storage.UnmarshalEntity(envelope)
				if err != nil {
					return err
				}
				rows = append(rows, row{seq: seqNo, entity: entity})
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

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	snapshot := make([]*core.Entity, len(rows))
	for i, r := range rows {
		snapshot[i] = r.entity
	}
	return storage.ApplyQuery(snapshot, q), nil
}

// Batch applies items in order, each in its own transaction, best-effort.
// The first failing item stops the batch; items already applied stay applied.
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
