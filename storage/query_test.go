package storage

import (
	"testing"
)

func TestBuilderIsImmutable(t *testing.T) {
	base := NewQuery().FilterBy(Field("language").Eq("fr")).Limit(10)

	pageOne := base.Cursor(1)
	sorted := base.OrderBy("created_at", true)

	if got := base.Build().CursorRef; got != 0 {
		t.Fatalf("branching a builder must not change the base cursor, got %d", got)
	}
	if got := len(base.Build().OrderBy); got != 0 {
		t.Fatalf("branching a builder must not change the base sort, got %d keys", got)
	}
	if pageOne.Build().CursorRef != 1 {
		t.Fatal("branched cursor lost")
	}
	if len(sorted.Build().OrderBy) != 1 {
		t.Fatal("branched sort lost")
	}
}

func TestBuilderFiltersJoinWithAnd(t *testing.T) {
	q := NewQuery().
		FilterBy(Field("language").Eq("fr")).
		FilterBy(Field("level").Eq("B1")).
		Build()

	composite, ok := q.Filter.(Composite)
	if !ok {
		t.Fatalf("expected a composite filter, got %T", q.Filter)
	}
	if composite.Join != JoinAnd {
		t.Fatalf("successive filters must join with and, got %s", composite.Join)
	}
}

func TestCombinatorsCollapseNil(t *testing.T) {
	leaf := Field("unit").Eq("seconds")
	if And(nil, leaf) != leaf {
		t.Fatal("And with a nil branch must collapse")
	}
	if Or(leaf, nil) != leaf {
		t.Fatal("Or with a nil branch must collapse")
	}
}

func TestFieldRefOperators(t *testing.T) {
	between, ok := Field("value").Between(10, 20).(Leaf)
	if !ok || between.Op != OpBetween {
		t.Fatalf("unexpected between leaf: %+v", between)
	}
	r, ok := between.Value.(Range)
	if !ok || r.Start != 10 || r.End != 20 {
		t.Fatalf("unexpected range: %+v", between.Value)
	}

	in, _ := Field("role").In("student", "teacher").(Leaf)
	if in.Op != OpIn {
		t.Fatalf("unexpected in leaf: %+v", in)
	}
	if vs, ok := in.Value.([]any); !ok || len(vs) != 2 {
		t.Fatalf("in must carry its value list: %+v", in.Value)
	}
}
