package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/classgraph/core"
)

func declareAll(t *testing.T, drafts ...*core.Entity) []*core.Entity {
	t.Helper()
	entityCtx := core.NewContext()
	out := make([]*core.Entity, len(drafts))
	for i, d := range drafts {
		e, err := entityCtx.DeclareEntity(d)
		if err != nil {
			t.Fatalf("declare draft %d: %v", i, err)
		}
		out[i] = e
	}
	return out
}

func TestCompositeFilter(t *testing.T) {
	rooms := declareAll(t,
		core.NewClassroomTagged("r28", 28, "a", "b"),
		core.NewClassroomTagged("r31", 31, "b", "c"),
		core.NewClassroomTagged("r22", 22, "c"),
	)

	q := NewQuery().FilterBy(And(
		Field("capacity").Lt(31),
		Field("tags").ArrayContains("b"),
	)).Build()

	got := ApplyQuery(rooms, q)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(got))
	}
	if got[0].Props.(*core.ClassroomProps).Name != "r28" {
		t.Fatalf("wrong entity matched: %+v", got[0].Props)
	}
}

func TestPaginationPages(t *testing.T) {
	drafts := make([]*core.Entity, 7)
	for i := range drafts {
		drafts[i] = core.NewClassroomTagged(fmt.Sprintf("U%d", i), i+1)
	}
	rooms := declareAll(t, drafts...)

	// No sort keys: pages cut the snapshot in its given order.
	base := NewQuery().Limit(3)

	names := func(entities []*core.Entity) []string {
		out := make([]string, len(entities))
		for i, e := range entities {
			out[i] = e.Props.(*core.ClassroomProps).Name
		}
		return out
	}

	page := ApplyQuery(rooms, base.Cursor(0).Build())
	if got := names(page); len(got) != 3 || got[0] != "U0" || got[2] != "U2" {
		t.Fatalf("page 0 mismatch: %v", got)
	}
	page = ApplyQuery(rooms, base.Cursor(1).Build())
	if got := names(page); len(got) != 3 || got[0] != "U3" || got[2] != "U5" {
		t.Fatalf("page 1 mismatch: %v", got)
	}
	page = ApplyQuery(rooms, base.Cursor(2).Build())
	if got := names(page); len(got) != 1 || got[0] != "U6" {
		t.Fatalf("page 2 mismatch: %v", got)
	}
	page = ApplyQuery(rooms, base.Cursor(3).Build())
	if len(page) != 0 {
		t.Fatalf("page past the end must be empty, got %d", len(page))
	}
}

func TestBetweenIsInclusive(t *testing.T) {
	rooms := declareAll(t,
		core.NewClassroomTagged("lo", 10),
		core.NewClassroomTagged("mid", 15),
		core.NewClassroomTagged("hi", 20),
		core.NewClassroomTagged("out", 21),
	)

	q := NewQuery().FilterBy(Field("capacity").Between(10, 20)).Build()
	if got := ApplyQuery(rooms, q); len(got) != 3 {
		t.Fatalf("between must include both bounds, got %d matches", len(got))
	}
}

func TestInAndNotIn(t *testing.T) {
	rooms := declareAll(t,
		core.NewClassroom("a", "fr", "A1"),
		core.NewClassroom("b", "es", "A1"),
		core.NewClassroom("c", "de", "A1"),
	)

	q := NewQuery().FilterBy(Field("language").In("fr", "es")).Build()
	if got := ApplyQuery(rooms, q); len(got) != 2 {
		t.Fatalf("in mismatch: %d", len(got))
	}

	q = NewQuery().FilterBy(Field("language").NotIn("fr", "es")).Build()
	got := ApplyQuery(rooms, q)
	if len(got) != 1 || got[0].Props.(*core.ClassroomProps).Language != "de" {
		t.Fatalf("not-in mismatch: %d", len(got))
	}
}

func TestArrayContainsAny(t *testing.T) {
	rooms := declareAll(t,
		core.NewClassroomTagged("ab", 1, "a", "b"),
		core.NewClassroomTagged("c", 2, "c"),
		core.NewClassroomTagged("none", 3),
	)

	q := NewQuery().FilterBy(Field("tags").ArrayContainsAny("b", "c")).Build()
	if got := ApplyQuery(rooms, q); len(got) != 2 {
		t.Fatalf("array-contains-any mismatch: %d", len(got))
	}
}

func TestNestedFieldPath(t *testing.T) {
	edges := declareAll(t,
		core.NewUsage("p1", "a1", core.TagAudio, core.Seconds(30)),
		core.NewUsage("p1", "a2", core.TagAudio, core.NewConsumption("characters", 100, 0.0625, 2)),
	)

	q := NewQuery().FilterBy(Field("consumption.unit").Eq("seconds")).Build()
	got := ApplyQuery(edges, q)
	if len(got) != 1 || got[0].Props.(*core.UsageProps).Target != "a1" {
		t.Fatalf("nested path mismatch: %d", len(got))
	}
}

func TestSortIsStableAndMultiKey(t *testing.T) {
	rooms := declareAll(t,
		core.NewClassroom("b-room", "fr", "B1"),
		core.NewClassroom("a-room", "fr", "A1"),
		core.NewClassroom("c-room", "es", "A1"),
	)

	q := NewQuery().OrderBy("language", false).OrderBy("level", false).Build()
	got := ApplyQuery(rooms, q)
	order := []string{"c-room", "a-room", "b-room"}
	for i, want := range order {
		if name := got[i].Props.(*core.ClassroomProps).Name; name != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, name)
		}
	}
}

func TestFilterOnMetaFields(t *testing.T) {
	entityCtx := core.NewContext(core.WithClock(func() time.Time {
		return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	}))
	e, err := entityCtx.DeclareEntity(core.NewText("bonjour", "fr"))
	if err != nil {
		t.Fatal(err)
	}

	q := NewQuery().FilterBy(Field("id").Eq(string(e.ID()))).Build()
	if got := ApplyQuery([]*core.Entity{e}, q); len(got) != 1 {
		t.Fatal("filter on id must match")
	}

	cutoff := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	q = NewQuery().FilterBy(Field("created_at").Gt(cutoff)).Build()
	if got := ApplyQuery([]*core.Entity{e}, q); len(got) != 1 {
		t.Fatal("filter on created_at must match")
	}
}
