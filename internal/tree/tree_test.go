// SPDX-License-Identifier: MIT

package tree

import (
	"reflect"
	"testing"

	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
)

func intMeta() queue.Meta { return queue.Meta{Type: reflect.TypeOf(0), Category: queue.CategoryFundamental} }

func insertInt(t *testing.T, tr *Tree, p string, v int) {
	t.Helper()
	var ret InsertReturn
	tr.In(path.NewIterator(p), InputData{Kind: InputValue, Value: v, Category: queue.CategoryFundamental}, &ret)
	if len(ret.Errors) != 0 {
		t.Fatalf("unexpected insert errors: %v", ret.Errors)
	}
}

func TestInsertAndReadFIFOOrder(t *testing.T) {
	tr := New()
	insertInt(t, tr, "/a/b", 1)
	insertInt(t, tr, "/a/b", 2)

	v, err := tr.Out(path.NewIterator("/a/b"), intMeta(), false)
	if err != nil || v.(int) != 1 {
		t.Fatalf("peek got %v %v, want 1", v, err)
	}
	v, err = tr.Out(path.NewIterator("/a/b"), intMeta(), true)
	if err != nil || v.(int) != 1 {
		t.Fatalf("pop got %v %v, want 1", v, err)
	}
	v, err = tr.Out(path.NewIterator("/a/b"), intMeta(), true)
	if err != nil || v.(int) != 2 {
		t.Fatalf("pop got %v %v, want 2", v, err)
	}
}

func TestOutNoSuchPath(t *testing.T) {
	tr := New()
	_, err := tr.Out(path.NewIterator("/missing"), intMeta(), false)
	if err != ErrNoSuchPath {
		t.Fatalf("got %v, want ErrNoSuchPath", err)
	}
}

func TestDataLeafBlocksDeeperStructure(t *testing.T) {
	tr := New()
	insertInt(t, tr, "/a", 1)

	var ret InsertReturn
	tr.In(path.NewIterator("/a/b"), InputData{Kind: InputValue, Value: 2, Category: queue.CategoryFundamental}, &ret)

	_, err := tr.Out(path.NewIterator("/a/b"), intMeta(), false)
	if err != ErrNoSuchPath && err != ErrInvalidPathSubcomponent {
		t.Fatalf("expected the insert under a data leaf to be blocked, got %v", err)
	}
}

func TestGlobInsertFansOutToMatchingChildren(t *testing.T) {
	tr := New()
	insertInt(t, tr, "/svc/worker1", 0)
	insertInt(t, tr, "/svc/worker2", 0)

	var ret InsertReturn
	tr.In(path.NewIterator("/svc/worker*"), InputData{Kind: InputValue, Value: 9, Category: queue.CategoryFundamental}, &ret)
	if ret.ValuesInserted != 2 {
		t.Fatalf("expected glob insert to fan out to 2 children, got %d", ret.ValuesInserted)
	}

	for _, p := range []string{"/svc/worker1", "/svc/worker2"} {
		tr.Out(path.NewIterator(p), intMeta(), true) // drop the original 0
		v, err := tr.Out(path.NewIterator(p), intMeta(), true)
		if err != nil || v.(int) != 9 {
			t.Fatalf("child %s did not receive glob-inserted value: %v %v", p, v, err)
		}
	}
}

func TestGlobReadPicksLexicographicallyFirstMatch(t *testing.T) {
	tr := New()
	insertInt(t, tr, "/b", 2)
	insertInt(t, tr, "/a", 1)

	v, err := tr.Out(path.NewIterator("/?"), intMeta(), false)
	if err != nil || v.(int) != 1 {
		t.Fatalf("got %v %v, want 1 from lexicographically-first match", v, err)
	}
}

func TestGlobCannotInsertNestedSpace(t *testing.T) {
	tr := New()
	insertInt(t, tr, "/svc/worker1", 0)

	var ret InsertReturn
	tr.In(path.NewIterator("/svc/worker*"), InputData{Kind: InputNestedSpace, NestedSpace: nil}, &ret)
	if len(ret.Errors) == 0 {
		t.Fatal("expected an error rejecting a nested-space insert through a glob")
	}
}

type fakeNestedSpace struct {
	tr *Tree
}

func (f *fakeNestedSpace) InNested(iter path.Iterator, input InputData) InsertReturn {
	var ret InsertReturn
	f.tr.In(iter, input, &ret)
	return ret
}

func (f *fakeNestedSpace) OutNested(iter path.Iterator, meta queue.Meta, doExtract bool) (any, error) {
	return f.tr.Out(iter, meta, doExtract)
}

func (f *fakeNestedSpace) ListChildrenNested(iter path.Iterator) ([]string, error) {
	return f.tr.ListChildren(iter)
}

func (f *fakeNestedSpace) PeekExecutionNested(iter path.Iterator) (any, any, error) {
	return f.tr.PeekExecution(iter)
}

func (f *fakeNestedSpace) VisitNested(prefix string, fn WalkFunc, maxDepth, maxChildren int, includeNested, includeValues bool) bool {
	return f.tr.Walk(fn, maxDepth, maxChildren, includeNested, includeValues)
}

func (f *fakeNestedSpace) CloneNested() (NestedSpace, error) {
	clonedTr, _ := f.tr.Clone()
	return &fakeNestedSpace{tr: clonedTr}, nil
}

func TestNestedSpaceDelegation(t *testing.T) {
	tr := New()
	nested := &fakeNestedSpace{tr: New()}

	var ret InsertReturn
	tr.In(path.NewIterator("/mount"), InputData{Kind: InputNestedSpace, NestedSpace: nested}, &ret)
	if ret.SpacesInserted != 1 {
		t.Fatalf("expected 1 space inserted, got %d", ret.SpacesInserted)
	}

	insertInt(t, tr, "/mount/x", 42)

	v, err := nested.tr.Out(path.NewIterator("/x"), intMeta(), true)
	if err != nil || v.(int) != 42 {
		t.Fatalf("expected insert under /mount to delegate into the nested tree: %v %v", v, err)
	}
}

func TestCloneDeepCopiesNestedSpaceAndSkipsOnFailure(t *testing.T) {
	tr := New()
	nested := &fakeNestedSpace{tr: New()}

	var ret InsertReturn
	tr.In(path.NewIterator("/mount"), InputData{Kind: InputNestedSpace, NestedSpace: nested}, &ret)
	insertInt(t, tr, "/v", 1)
	insertInt(t, nested.tr, "/inner", 7)

	clone, stats := tr.Clone()
	if stats.ValuesCopied != 1 {
		t.Fatalf("expected 1 value copied at the outer level, got %d", stats.ValuesCopied)
	}
	if stats.SpacesCopied != 1 || stats.SpacesSkipped != 0 {
		t.Fatalf("expected the mounted nested space to be copied, got copied=%d skipped=%d", stats.SpacesCopied, stats.SpacesSkipped)
	}

	v, err := clone.Out(path.NewIterator("/v"), intMeta(), false)
	if err != nil || v.(int) != 1 {
		t.Fatalf("expected cloned tree to retain its own values: %v %v", v, err)
	}

	clone.root.mu.Lock()
	mountNode := clone.root.children["mount"]
	clone.root.mu.Unlock()
	if mountNode == nil || mountNode.nested == nil {
		t.Fatal("expected the clone to have its own mount with a cloned nested space attached")
	}
	clonedNested, ok := mountNode.nested.(*fakeNestedSpace)
	if !ok {
		t.Fatalf("expected cloned nested space to be a *fakeNestedSpace, got %T", mountNode.nested)
	}
	if clonedNested.tr == nested.tr {
		t.Fatal("cloned nested space must be an independent copy, not the original tree")
	}

	inner, err := clonedNested.tr.Out(path.NewIterator("/inner"), intMeta(), false)
	if err != nil || inner.(int) != 7 {
		t.Fatalf("expected the cloned nested space to carry over its own values: %v %v", inner, err)
	}

	// Writing to the original nested tree after cloning must not leak
	// into the clone's independent copy.
	insertInt(t, nested.tr, "/inner2", 9)
	if _, err := clonedNested.tr.Out(path.NewIterator("/inner2"), intMeta(), false); err == nil {
		t.Fatal("cloned nested space must not observe post-clone writes to the original")
	}

	// A failing CloneNested must be skipped, not abort the whole clone.
	failing := &failingNestedSpace{}
	tr2 := New()
	var ret2 InsertReturn
	tr2.In(path.NewIterator("/bad"), InputData{Kind: InputNestedSpace, NestedSpace: failing}, &ret2)
	insertInt(t, tr2, "/ok", 3)

	_, stats2 := tr2.Clone()
	if stats2.SpacesCopied != 0 || stats2.SpacesSkipped != 1 {
		t.Fatalf("expected the failing mount to be skipped, got copied=%d skipped=%d", stats2.SpacesCopied, stats2.SpacesSkipped)
	}
	if stats2.ValuesCopied != 1 {
		t.Fatalf("expected the sibling value to still be copied despite the failing mount, got %d", stats2.ValuesCopied)
	}
}

type failingNestedSpace struct{ fakeNestedSpace }

func (f *failingNestedSpace) CloneNested() (NestedSpace, error) {
	return nil, ErrNoSuchPath
}
