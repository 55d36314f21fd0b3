package storage

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/classgraph/core"
)

// Reference query semantics. The in-memory adapter executes these directly;
// the document backend decodes its native scan into entities and then applies
// exactly the same functions, which is what makes the two backends
// observably identical.

// ApplyQuery filters, sorts and paginates a snapshot of entities.
func ApplyQuery(entities []*core.Entity, q Query) []*core.Entity {
	matched := make([]*core.Entity, 0, len(entities))
	for _, e := range entities {
		if q.Filter == nil || MatchesFilter(e, q.Filter) {
			matched = append(matched, e)
		}
	}
	SortEntities(matched, q.OrderBy)
	return PageSlice(matched, q.CursorRef, q.BatchSize)
}

// MatchesFilter evaluates the filter tree against one entity. Unknown fields
// and uncomparable values never match; they do not error.
func MatchesFilter(e *core.Entity, w Where) bool {
	switch node := w.(type) {
	case Composite:
		switch node.Join {
		case JoinOr:
			return MatchesFilter(e, node.Left) || MatchesFilter(e, node.Right)
		default:
			return MatchesFilter(e, node.Left) && MatchesFilter(e, node.Right)
		}
	case Leaf:
		return matchesLeaf(e, node)
	default:
		return false
	}
}

func matchesLeaf(e *core.Entity, leaf Leaf) bool {
	field, ok := FieldValue(e, leaf.Field)
	if !ok {
		return false
	}

	switch leaf.Op {
	case OpEqual:
		c, ok := compareValues(field, leaf.Value)
		return ok && c == 0
	case OpNotEqual:
		c, ok := compareValues(field, leaf.Value)
		return ok && c != 0
	case OpGreater:
		c, ok := compareValues(field, leaf.Value)
		return ok && c > 0
	case OpGreaterOrEqual:
		c, ok := compareValues(field, leaf.Value)
		return ok && c >= 0
	case OpLess:
		c, ok := compareValues(field, leaf.Value)
		return ok && c < 0
	case OpLessOrEqual:
		c, ok := compareValues(field, leaf.Value)
		return ok && c <= 0
	case OpIn:
		return valueIn(leaf.Value, field)
	case OpNotIn:
		return !valueIn(leaf.Value, field)
	case OpBetween:
		r, ok := leaf.Value.(Range)
		if !ok {
			return false
		}
		lo, okLo := compareValues(field, r.Start)
		hi, okHi := compareValues(field, r.End)
		return okLo && okHi && lo >= 0 && hi <= 0
	case OpArrayContains:
		return arrayContains(field, leaf.Value)
	case OpArrayContainsAny:
		for _, candidate := range anySlice(leaf.Value) {
			if arrayContains(field, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FieldValue resolves a field path on an entity. "id", "created_at" and
// "updated_at" come from meta; other segments descend through the props
// struct by json tag.
func FieldValue(e *core.Entity, path string) (any, bool) {
	if e == nil {
		return nil, false
	}
	switch path {
	case "id":
		if e.Meta == nil {
			return nil, false
		}
		return e.Meta.ID, true
	case "created_at":
		if e.Meta == nil {
			return nil, false
		}
		return e.Meta.CreatedAt, true
	case "updated_at":
		if e.Meta == nil {
			return nil, false
		}
		return e.Meta.UpdatedAt, true
	}

	if e.Props == nil {
		return nil, false
	}
	v := reflect.ValueOf(e.Props)
	for _, segment := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return nil, false
		}
		field, ok := structFieldByTag(v, segment)
		if !ok {
			return nil, false
		}
		v = field
	}
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func structFieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if comma := strings.IndexByte(tag, ','); comma >= 0 {
			tag = tag[:comma]
		}
		if tag == name || (tag == "" && f.Name == name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// compareValues orders two values of compatible kinds. Numbers compare on a
// common float64 scale, strings (including named string types such as
// core.ID) lexically, times chronologically, bools with false < true.
func compareValues(a, b any) (int, bool) {
	if at, aok := asTime(a); aok {
		bt, bok := asTime(b)
		if !bok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if as, aok := asString(a); aok {
		bs, bok := asString(b)
		if !bok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		if !bok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		default:
			return 1, true
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	if _, isTime := v.(time.Time); isTime {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func valueIn(candidates any, v any) bool {
	for _, candidate := range anySlice(candidates) {
		if c, ok := compareValues(v, candidate); ok && c == 0 {
			return true
		}
	}
	return false
}

func arrayContains(field any, v any) bool {
	rv := reflect.ValueOf(field)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if c, ok := compareValues(rv.Index(i).Interface(), v); ok && c == 0 {
			return true
		}
	}
	return false
}

func anySlice(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// SortEntities sorts in place by the order keys, stably, so equal keys keep
// their prior relative order and multi-key sorts compose predictably.
func SortEntities(entities []*core.Entity, order []Sort) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		for _, key := range order {
			a, aok := FieldValue(entities[i], key.Field)
			b, bok := FieldValue(entities[j], key.Field)
			if !aok || !bok {
				// Missing fields sort last regardless of direction.
				if aok != bok {
					return aok
				}
				continue
			}
			c, ok := compareValues(a, b)
			if !ok || c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// PageSlice applies page-index pagination: start = cursorRef * batchSize,
// end = start + batchSize. A zero batchSize returns everything.
func PageSlice(entities []*core.Entity, cursorRef, batchSize int) []*core.Entity {
	if batchSize <= 0 {
		return entities
	}
	if cursorRef < 0 {
		cursorRef = 0
	}
	start := cursorRef * batchSize
	if start >= len(entities) {
		return []*core.Entity{}
	}
	end := start + batchSize
	if end > len(entities) {
		end = len(entities)
	}
	return entities[start:end]
}
