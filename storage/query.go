package storage

// Backend-neutral query DSL. A Where is a binary expression tree of
// composites (and/or) over leaves (field, operator, value); each backend
// compiles the same tree into whatever it executes natively, but the
// observable results are fixed by ApplyQuery.

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpGreater          Operator = ">"
	OpGreaterOrEqual   Operator = ">="
	OpLess             Operator = "<"
	OpLessOrEqual      Operator = "<="
	OpIn               Operator = "in"
	OpNotIn            Operator = "not-in"
	OpBetween          Operator = "between"
	OpArrayContains    Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
)

// Join combines the two branches of a composite.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)

// Where is a filter expression tree node: either a Leaf or a Composite.
type Where interface {
	whereNode()
}

// Leaf compares one field against a value.
type Leaf struct {
	Field string
	Op    Operator
	Value any
}

func (Leaf) whereNode() {}

// Composite joins two subtrees with and/or.
type Composite struct {
	Join  Join
	Left  Where
	Right Where
}

func (Composite) whereNode() {}

// Range is the value carried by a between leaf. Both bounds are inclusive.
type Range struct {
	Start any
	End   any
}

// And joins two filters conjunctively. Nil branches collapse to the other
// branch so filters can be built up conditionally.
func And(left, right Where) Where {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return Composite{Join: JoinAnd, Left: left, Right: right}
}

// Or joins two filters disjunctively.
func Or(left, right Where) Where {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return Composite{Join: JoinOr, Left: left, Right: right}
}

// FieldRef names a field for leaf construction. The special fields "id",
// "created_at" and "updated_at" resolve from entity meta; every other name
// resolves from the props shape by its json tag, with dots descending into
// nested shapes (e.g. "consumption.unit").
type FieldRef string

// Field starts a leaf filter on the named field.
func Field(name string) FieldRef { return FieldRef(name) }

func (f FieldRef) leaf(op Operator, v any) Where {
	return Leaf{Field: string(f), Op: op, Value: v}
}

// Eq filters field == v.
func (f FieldRef) Eq(v any) Where { return f.leaf(OpEqual, v) }

// Neq filters field != v.
func (f FieldRef) Neq(v any) Where { return f.leaf(OpNotEqual, v) }

// Gt filters field > v.
func (f FieldRef) Gt(v any) Where { return f.leaf(OpGreater, v) }

// Gte filters field >= v.
func (f FieldRef) Gte(v any) Where { return f.leaf(OpGreaterOrEqual, v) }

// Lt filters field < v.
func (f FieldRef) Lt(v any) Where { return f.leaf(OpLess, v) }

// Lte filters field <= v.
func (f FieldRef) Lte(v any) Where { return f.leaf(OpLessOrEqual, v) }

// In filters field equal to any of values.
func (f FieldRef) In(values ...any) Where { return f.leaf(OpIn, values) }

// NotIn filters field different from all of values.
func (f FieldRef) NotIn(values ...any) Where { return f.leaf(OpNotIn, values) }

// Between filters start <= field <= end, inclusive on both bounds.
func (f FieldRef) Between(start, end any) Where {
	return f.leaf(OpBetween, Range{Start: start, End: end})
}

// ArrayContains filters array fields containing v.
func (f FieldRef) ArrayContains(v any) Where { return f.leaf(OpArrayContains, v) }

// ArrayContainsAny filters array fields containing any of values.
func (f FieldRef) ArrayContainsAny(values ...any) Where {
	return f.leaf(OpArrayContainsAny, values)
}

// Sort orders results by one field.
type Sort struct {
	Field      string
	Descending bool
}

// Query is a built, immutable query program. A zero BatchSize disables
// pagination and returns the full sorted result.
type Query struct {
	Filter    Where
	OrderBy   []Sort
	CursorRef int
	BatchSize int
}

// Builder assembles queries fluently. Builders have value semantics: every
// method returns a new builder, so a partially built query can be shared and
// branched without interference.
type Builder struct {
	q Query
}

// NewQuery starts an empty query builder.
func NewQuery() Builder {
	return Builder{}
}

// FilterBy adds a filter. Successive calls are joined with And.
func (b Builder) FilterBy(w Where) Builder {
	b.q.Filter = And(b.q.Filter, w)
	return b
}

// OrderBy appends a sort key. Earlier keys take precedence; the underlying
// sort is stable, so ties keep their prior relative order.
func (b Builder) OrderBy(field string, descending bool) Builder {
	order := make([]Sort, len(b.q.OrderBy), len(b.q.OrderBy)+1)
	copy(order, b.q.OrderBy)
	b.q.OrderBy = append(order, Sort{Field: field, Descending: descending})
	return b
}

// Cursor selects the page index to fetch. Page N covers the slice
// [N*BatchSize, (N+1)*BatchSize) of the sorted result.
func (b Builder) Cursor(ref int) Builder {
	b.q.CursorRef = ref
	return b
}

// Limit sets the page size.
func (b Builder) Limit(batchSize int) Builder {
	b.q.BatchSize = batchSize
	return b
}

// Build yields the immutable query value.
func (b Builder) Build() Query {
	if len(b.q.OrderBy) > 0 {
		order := make([]Sort, len(b.q.OrderBy))
		copy(order, b.q.OrderBy)
		b.q.OrderBy = order
	}
	return b.q
}
