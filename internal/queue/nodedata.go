// SPDX-License-Identifier: MIT

// Package queue implements NodeData, the ordered heterogeneous FIFO
// payload queue stored at every tree node: values, nested-subspace
// slots, and execution-task slots, in a single insertion-ordered queue.
package queue

import (
	"errors"
	"reflect"
	"sync"
)

// Category classifies how a value entry was produced, mirroring the
// three payload categories of the original core.
type Category uint8

const (
	CategoryFundamental Category = iota
	CategorySerializedData
	CategoryPodPreferred
)

// ErrInvalidType is returned when value entries exist but none of them
// has the requested Meta's type (or, for glob reads, when every
// matching entry fails that way).
var ErrInvalidType = errors.New("pathspace: invalid type")

// ErrNoObjectFound is returned when the queue holds no entry at all
// (empty, or no entry of the requested kind).
var ErrNoObjectFound = errors.New("pathspace: no object found")

// Meta describes the type identity a Deserialize/DeserializePop call is
// looking for.
type Meta struct {
	Type     reflect.Type
	Category Category
}

type entryKind uint8

const (
	kindValue entryKind = iota
	kindNested
	kindExecution
)

type entry struct {
	kind     entryKind
	typ      reflect.Type
	category Category

	value any // kindValue: the stored value

	nested          any  // kindNested: live nested subspace (opaque, asserted by caller)
	nestedPlaceholder bool // true once the live slot has been replaced by a snapshot placeholder
	borrowCount     int
	borrowCond      *sync.Cond

	task   any // kindExecution: opaque *task.Task
	future any // kindExecution: opaque task.FutureAny
}

// NodeData is the ordered, heterogeneous FIFO stored at one tree node.
// All methods assume the caller holds the owning node's payload mutex;
// NodeData does not lock itself except for the per-slot nested borrow
// condition variables, which are intentionally independent of the
// node-level lock so that a long-lived borrow never blocks unrelated
// queue operations.
type NodeData struct {
	entries []*entry
}

// New constructs an empty NodeData.
func New() *NodeData { return &NodeData{} }

// Empty reports whether the queue holds no entries at all.
func (q *NodeData) Empty() bool { return q == nil || len(q.entries) == 0 }

// ValueCount returns the number of plain-value entries.
func (q *NodeData) ValueCount() int {
	n := 0
	for _, e := range q.entries {
		if e.kind == kindValue {
			n++
		}
	}
	return n
}

// NestedCount returns the number of nested-subspace entries (live or placeholder).
func (q *NodeData) NestedCount() int {
	n := 0
	for _, e := range q.entries {
		if e.kind == kindNested {
			n++
		}
	}
	return n
}

// ExecutionCount returns the number of execution-task entries.
func (q *NodeData) ExecutionCount() int {
	n := 0
	for _, e := range q.entries {
		if e.kind == kindExecution {
			n++
		}
	}
	return n
}

// PushValue appends a plain value at the tail.
func (q *NodeData) PushValue(v any, cat Category) {
	q.entries = append(q.entries, &entry{
		kind:     kindValue,
		typ:      reflect.TypeOf(v),
		category: cat,
		value:    v,
	})
}

// PushNested appends a live nested subspace slot at the tail and
// returns its index within the queue (stable until a prior entry is
// popped — callers that need a stable handle should use BorrowNestedShared).
func (q *NodeData) PushNested(space any) int {
	q.entries = append(q.entries, &entry{kind: kindNested, nested: space})
	return len(q.entries) - 1
}

// PushExecution appends an execution slot (task + type-erased future) at the tail.
func (q *NodeData) PushExecution(task, future any) {
	q.entries = append(q.entries, &entry{kind: kindExecution, task: task, future: future})
}

// Deserialize peeks the first value-kind entry matching meta without
// removing it. Returns ErrInvalidType if value entries exist but none
// has meta's type, ErrNoObjectFound if no value entry is present at all.
func (q *NodeData) Deserialize(meta Meta) (any, error) {
	idx, err := q.firstMatchIndex(meta)
	if err != nil {
		return nil, err
	}
	return q.entries[idx].value, nil
}

// DeserializePop is the destructive variant of Deserialize: it removes
// exactly the matched entry from the queue.
func (q *NodeData) DeserializePop(meta Meta) (any, error) {
	idx, err := q.firstMatchIndex(meta)
	if err != nil {
		return nil, err
	}
	v := q.entries[idx].value
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	return v, nil
}

func (q *NodeData) firstMatchIndex(meta Meta) (int, error) {
	sawValueEntry := false
	for i, e := range q.entries {
		if e.kind != kindValue {
			continue
		}
		sawValueEntry = true
		if e.typ == meta.Type {
			return i, nil
		}
	}
	if sawValueEntry {
		return -1, ErrInvalidType
	}
	return -1, ErrNoObjectFound
}

// PeekFuture returns the type-erased future of the first execution slot, if any.
func (q *NodeData) PeekFuture() (any, bool) {
	for _, e := range q.entries {
		if e.kind == kindExecution {
			return e.future, true
		}
	}
	return nil, false
}

// PeekAnyFuture is an alias of PeekFuture kept for parity with the
// original core's naming (peekFuture vs peekAnyFuture distinguished a
// typed vs type-erased accessor in C++; in Go there is only one shape).
func (q *NodeData) PeekAnyFuture() (any, bool) { return q.PeekFuture() }

// PeekExecutionEntry returns the opaque task and future of the first
// execution-kind entry, if any, for ReadFuture/lazy-scheduling callers
// that need the task handle as well as its future.
func (q *NodeData) PeekExecutionEntry() (task any, future any, ok bool) {
	for _, e := range q.entries {
		if e.kind == kindExecution {
			return e.task, e.future, true
		}
	}
	return nil, nil, false
}

// BorrowNestedShared pins the nested slot at index with a shared
// reference: the slot's Take call will block until every outstanding
// borrow on it is released. It returns the nested value and a release
// function; ok is false if index does not hold a live nested slot.
func (q *NodeData) BorrowNestedShared(index int) (space any, release func(), ok bool) {
	if index < 0 || index >= len(q.entries) {
		return nil, nil, false
	}
	e := q.entries[index]
	if e.kind != kindNested || e.nestedPlaceholder {
		return nil, nil, false
	}
	if e.borrowCond == nil {
		e.borrowCond = sync.NewCond(&sync.Mutex{})
	}
	e.borrowCond.L.Lock()
	e.borrowCount++
	space = e.nested
	e.borrowCond.L.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			e.borrowCond.L.Lock()
			e.borrowCount--
			if e.borrowCount == 0 {
				e.borrowCond.Broadcast()
			}
			e.borrowCond.L.Unlock()
		})
	}
	return space, release, true
}

// TakeNestedAt blocks until all outstanding borrows on the nested slot
// at index release, then removes and returns the live nested value.
func (q *NodeData) TakeNestedAt(index int) (any, bool) {
	if index < 0 || index >= len(q.entries) {
		return nil, false
	}
	e := q.entries[index]
	if e.kind != kindNested || e.nestedPlaceholder {
		return nil, false
	}
	if e.borrowCond != nil {
		e.borrowCond.L.Lock()
		for e.borrowCount > 0 {
			e.borrowCond.Wait()
		}
		e.borrowCond.L.Unlock()
	}
	space := e.nested
	q.entries = append(q.entries[:index], q.entries[index+1:]...)
	return space, true
}

// EmplaceNestedAt replaces whatever sits at index (normally a
// placeholder produced by a snapshot restore) with a fresh live nested
// subspace, re-enabling borrow/take on that slot.
func (q *NodeData) EmplaceNestedAt(index int, space any) bool {
	if index < 0 || index >= len(q.entries) {
		return false
	}
	e := q.entries[index]
	if e.kind != kindNested {
		return false
	}
	e.nested = space
	e.nestedPlaceholder = false
	e.borrowCount = 0
	e.borrowCond = nil
	return true
}

// Clone implements invariant I-4: copying a NodeData drops all nested
// and execution slots — ownership of a nested subspace is unique and
// an execution is a single-shot in-flight computation — so only value
// entries survive. A value whose type has a Clone() method returning
// that same type (the facade's Cloner interface) is copied by calling
// it; any other value is copied by Go's ordinary value-copy semantics
// for the `any` it holds.
func (q *NodeData) Clone() *NodeData {
	if q == nil {
		return nil
	}
	out := &NodeData{entries: make([]*entry, 0, len(q.entries))}
	for _, e := range q.entries {
		if e.kind != kindValue {
			continue // I-4: only value entries survive a copy
		}
		cp := *e
		cp.borrowCond = nil
		cp.borrowCount = 0
		if rv := reflect.ValueOf(e.value); rv.IsValid() && !(rv.Kind() == reflect.Ptr && rv.IsNil()) {
			m := rv.MethodByName("Clone")
			if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 && m.Type().Out(0) == e.typ {
				cp.value = m.Call(nil)[0].Interface()
			}
		}
		out.entries = append(out.entries, &cp)
	}
	return out
}

// TypeSummary returns, in queue order, the (Category, reflect.Type) of
// every value entry — used by snapshot round-trip tests (property 6).
func (q *NodeData) TypeSummary() []Meta {
	out := make([]Meta, 0, len(q.entries))
	for _, e := range q.entries {
		if e.kind == kindValue {
			out = append(out, Meta{Type: e.typ, Category: e.category})
		}
	}
	return out
}
