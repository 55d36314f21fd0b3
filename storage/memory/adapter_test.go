package memory

import (
	"context"
	"testing"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

func declare(t *testing.T, draft *core.Entity) *core.Entity {
	t.Helper()
	e, err := core.NewContext().DeclareEntity(draft)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	return e
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(core.TagText)

	text := declare(t, core.NewText("bonjour", "fr"))
	if _, err := adapter.Set(ctx, text); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := adapter.Get(ctx, text.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID() != text.ID() {
		t.Fatalf("round trip lost the entity: %+v", got)
	}
	if got.Props.(*core.TextProps).Content != "bonjour" {
		t.Fatalf("round trip lost props: %+v", got.Props)
	}

	if err := adapter.Remove(ctx, text.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err = adapter.Get(ctx, text.ID())
	if err != nil {
		t.Fatalf("Get after remove: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil after remove")
	}

	// Removing again is a no-op.
	if err := adapter.Remove(ctx, text.ID()); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestAdapterRejectsDraftsAndForeignTags(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(core.TagText)

	if _, err := adapter.Set(ctx, core.NewText("draft", "")); err != storage.ErrDraftEntity {
		t.Fatalf("expected ErrDraftEntity, got %v", err)
	}

	agent := declare(t, core.NewAgent("a", ""))
	if _, err := adapter.Set(ctx, agent); err == nil {
		t.Fatal("expected a tag mismatch error")
	}
}

func TestAdapterGetDoesNotAliasStore(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(core.TagText)

	text := declare(t, core.NewText("original", "fr"))
	if _, err := adapter.Set(ctx, text); err != nil {
		t.Fatal(err)
	}

	got, _ := adapter.Get(ctx, text.ID())
	got.Props.(*core.TextProps).Content = "mutated"

	again, _ := adapter.Get(ctx, text.ID())
	if again.Props.(*core.TextProps).Content != "original" {
		t.Fatal("store state must not be reachable through returned entities")
	}
}

func TestAdapterBatchBestEffort(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(core.TagText)

	a := declare(t, core.NewText("a", ""))
	b := declare(t, core.NewText("b", ""))

	result, err := adapter.Batch(ctx, []storage.BatchItem{
		storage.SetItem(a),
		{Op: storage.BatchSet, Entity: nil}, // invalid item fails the batch
		storage.SetItem(b),
	})
	if err == nil {
		t.Fatal("expected an error from the invalid item")
	}
	if result.Status != storage.BatchFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if len(result.Failures) != 1 || result.Failures[0] != core.TagText {
		t.Fatalf("expected failures [text], got %v", result.Failures)
	}

	// The item applied before the failure stays applied.
	got, _ := adapter.Get(ctx, a.ID())
	if got == nil {
		t.Fatal("applied item must not be rolled back by the adapter")
	}
	// The item after the failure was never applied.
	got, _ = adapter.Get(ctx, b.ID())
	if got != nil {
		t.Fatal("items after the failure must not apply")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	index := NewIndex()

	id, err := index.Allocate(ctx, core.TagAudio)
	if err != nil {
		t.Fatal(err)
	}
	tag, ok, err := index.Resolve(ctx, id)
	if err != nil || !ok || tag != core.TagAudio {
		t.Fatalf("resolve mismatch: %s %v %v", tag, ok, err)
	}

	if _, ok, _ := index.Resolve(ctx, "missing"); ok {
		t.Fatal("unmapped id must not resolve")
	}

	if err := index.Unbind(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := index.Resolve(ctx, id); ok {
		t.Fatal("unbound id must not resolve")
	}
}
