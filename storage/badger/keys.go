package badger

import (
	"fmt"
	"strings"

	"github.com/poiesic/classgraph/core"
)

// Key prefixes for the three keyspaces
const (
	entityPrefix   = "ent"
	indexPrefix    = "idx"
	sequencePrefix = "seq"
)

// makeEntityKey generates the key for an entity document. The entity's id is
// the tail of the key, which is how the "id" field maps to the store's native
// primary key on both read and write paths.
func makeEntityKey(tag core.Tag, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", entityPrefix, tag, id))
}

// makeEntityScanPrefix generates the prefix covering all documents of a tag.
func makeEntityScanPrefix(tag core.Tag) []byte {
	return []byte(fmt.Sprintf("%s:%s:", entityPrefix, tag))
}

// makeSequenceName names the per-tag insertion sequence.
func makeSequenceName(tag core.Tag) string {
	return fmt.Sprintf("%s:%s", sequencePrefix, tag)
}

// makeIndexKey generates the key for an identity-index entry.
func makeIndexKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s", indexPrefix, id))
}

// idFromIndexKey recovers the id from an identity-index key.
func idFromIndexKey(key []byte) core.ID {
	return core.ID(strings.TrimPrefix(string(key), indexPrefix+":"))
}
