// SPDX-License-Identifier: MIT

package tree

import (
	"sort"

	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
)

// Tree is the structural node tree rooted at a single node. It has no
// notion of blocking, waiting, or executors — those live one layer up
// in the root package, which drives Tree through the plain In/Out calls
// below and adds the retry/backoff loop around Out.
type Tree struct {
	pool *pool
	root *node
}

// New constructs an empty Tree.
func New() *Tree {
	return &Tree{pool: newPool(), root: new(node)}
}

// In inserts inputData at the path described by iter, mutating ret in
// place to accumulate counts and any per-child errors encountered along
// the way (e.g. a serialization failure reported by NodeData, or a
// rejected glob-space insert).
func (t *Tree) In(iter path.Iterator, input InputData, ret *InsertReturn) {
	t.inAtNode(t.root, iter, input, ret)
}

// Out reads (doExtract=false) or pops (doExtract=true) the first entry
// at the path described by iter matching meta.
func (t *Tree) Out(iter path.Iterator, meta queue.Meta, doExtract bool) (any, error) {
	return t.outAtNode(t.root, iter, meta, doExtract)
}

// Clear releases every node back to the pool.
func (t *Tree) Clear() {
	t.root.clearRecursive(t.pool)
	t.root = new(node)
}

// Clone returns a deep structural copy of t: every node's payload
// queue is copied via queue.NodeData.Clone (which itself drops
// any nested-subspace and execution queue entries, invariant I-4), and
// every node.nested mount is itself cloned recursively via
// NestedSpace.CloneNested, falling back to a skip-with-count if a
// given mount's clone attempt fails. The returned stats report how
// many values, mounts, and tasks were copied/skipped/dropped so the
// facade can surface them as CopyStats.
func (t *Tree) Clone() (*Tree, CloneStats) {
	out := New()
	var stats CloneStats
	out.root = t.cloneNode(t.root, out.pool, &stats)
	return out, stats
}

// CloneStats counts what Tree.Clone actually did, independent of the
// facade-level CopyStats shape (kept separate so internal/tree has no
// dependency on the root package).
type CloneStats struct {
	ValuesCopied  int
	SpacesCopied  int
	SpacesSkipped int
	TasksDropped  int
}

func (t *Tree) cloneNode(n *node, p *pool, stats *CloneStats) *node {
	n.mu.Lock()
	payload := n.payload
	nested := n.nested
	children := make(map[string]*node, len(n.children))
	for k, v := range n.children {
		children[k] = v
	}
	n.mu.Unlock()

	out := p.Get()
	if payload != nil {
		stats.TasksDropped += payload.ExecutionCount()
		out.payload = payload.Clone()
		stats.ValuesCopied += out.payload.ValueCount()
	}
	if nested != nil {
		if clonedNested, ok := cloneNestedSafely(nested); ok {
			out.nested = clonedNested
			stats.SpacesCopied++
		} else {
			stats.SpacesSkipped++
		}
	}
	if len(children) > 0 {
		out.children = make(map[string]*node, len(children))
		for name, child := range children {
			out.children[name] = t.cloneNode(child, p, stats)
		}
	}
	return out
}

// cloneNestedSafely calls nested.CloneNested, treating both a
// returned error and a panic (e.g. a serialization failure deep in a
// mounted subspace) as a skip rather than letting one bad mount abort
// the whole Clone, mirroring the reference copy's "skips nested when
// snapshot restore fails to attach" behavior.
func cloneNestedSafely(nested NestedSpace) (cloned NestedSpace, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			cloned, ok = nil, false
		}
	}()
	c, err := nested.CloneNested()
	if err != nil || c == nil {
		return nil, false
	}
	return c, true
}

func (t *Tree) inAtNode(n *node, iter path.Iterator, input InputData, ret *InsertReturn) {
	name := iter.CurrentComponent()

	if iter.IsAtFinalComponent() {
		if path.IsGlob(name) {
			if input.Kind == InputNestedSpace {
				ret.Errors = append(ret.Errors, ErrGlobSpaceInsert)
				return
			}
			var matching []string
			n.forEachChild(func(childName string, _ *node) {
				if path.MatchName(name, childName) {
					matching = append(matching, childName)
				}
			})
			for _, childName := range matching {
				child := n.getChild(t.pool, childName)
				if child == nil {
					continue
				}
				t.insertValueOrTask(child, input, ret)
			}
			return
		}

		child := n.getOrCreateChild(t.pool, name)
		if input.Kind == InputNestedSpace {
			child.mu.Lock()
			child.nested = input.NestedSpace
			child.mu.Unlock()
			ret.SpacesInserted++
			return
		}
		t.insertValueOrTask(child, input, ret)
		return
	}

	nextIter := iter.Next()

	if path.IsGlob(name) {
		n.forEachChild(func(childName string, child *node) {
			if !path.MatchName(name, childName) {
				return
			}
			child.mu.Lock()
			nested := child.nested
			hasData := child.hasData()
			child.mu.Unlock()

			switch {
			case nested != nil:
				ret.Merge(nested.InNested(nextIter, input))
			case hasData:
				// I-1: a data-bearing leaf blocks deeper structure.
			default:
				t.inAtNode(child, nextIter, input, ret)
			}
		})
		return
	}

	existing := n.getChild(t.pool, name)
	if existing == nil {
		created := n.getOrCreateChild(t.pool, name)
		t.inAtNode(created, nextIter, input, ret)
		return
	}

	existing.mu.Lock()
	nested := existing.nested
	hasData := existing.hasData()
	existing.mu.Unlock()

	switch {
	case nested != nil:
		ret.Merge(nested.InNested(nextIter, input))
	case hasData:
		// I-1
	default:
		t.inAtNode(existing, nextIter, input, ret)
	}
}

func (t *Tree) insertValueOrTask(child *node, input InputData, ret *InsertReturn) {
	child.mu.Lock()
	q := child.ensureData()
	child.mu.Unlock()

	switch input.Kind {
	case InputTask:
		q.PushExecution(input.Task, input.Future)
		ret.TasksInserted++
	default:
		q.PushValue(input.Value, input.Category)
		ret.ValuesInserted++
	}
}

func (t *Tree) outAtNode(n *node, iter path.Iterator, meta queue.Meta, doExtract bool) (any, error) {
	name := iter.CurrentComponent()

	if iter.IsAtFinalComponent() {
		if path.IsGlob(name) {
			return t.outGlobFinal(n, name, meta, doExtract)
		}

		child := n.getChild(t.pool, name)
		if child == nil {
			return nil, ErrNoSuchPath
		}

		child.mu.Lock()
		q := child.payload
		child.mu.Unlock()
		if q == nil {
			return nil, ErrNoSuchPath
		}

		if doExtract {
			v, err := q.DeserializePop(meta)
			return v, err
		}
		return q.Deserialize(meta)
	}

	if path.IsGlob(name) {
		return nil, ErrNoSuchPath
	}

	child := n.getChild(t.pool, name)
	if child == nil {
		return nil, ErrNoSuchPath
	}

	child.mu.Lock()
	nested := child.nested
	hasData := child.hasData()
	hasChildren := child.hasChildren()
	child.mu.Unlock()

	if hasData && !hasChildren && nested == nil {
		return nil, ErrInvalidPathSubcomponent
	}

	nextIter := iter.Next()
	if nested != nil {
		return nested.OutNested(nextIter, meta, doExtract)
	}
	return t.outAtNode(child, nextIter, meta, doExtract)
}

// DebugJSON renders the payload queue at the exact path described by
// iter as JSON, for introspection/tests (SPEC_FULL.md §4 item 7).
func (t *Tree) DebugJSON(iter path.Iterator) ([]byte, error) {
	n, err := t.locateAt(t.root, iter)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	q := n.payload
	n.mu.Unlock()
	if q == nil {
		q = queue.New()
	}
	return q.DebugJSON()
}

func (t *Tree) locateAt(n *node, iter path.Iterator) (*node, error) {
	if iter.IsAtEnd() {
		return n, nil
	}
	name := iter.CurrentComponent()
	if path.IsGlob(name) {
		return nil, ErrNoSuchPath
	}
	child := n.getChild(t.pool, name)
	if child == nil {
		return nil, ErrNoSuchPath
	}
	return t.locateAt(child, iter.Next())
}

// ListChildren returns the names of the children of the node at iter,
// delegating through any nested subspace mounted along the way.
func (t *Tree) ListChildren(iter path.Iterator) ([]string, error) {
	return t.listChildrenAt(t.root, iter)
}

func (t *Tree) listChildrenAt(n *node, iter path.Iterator) ([]string, error) {
	if iter.IsAtEnd() {
		n.mu.Lock()
		defer n.mu.Unlock()
		out := make([]string, 0, len(n.children))
		for name := range n.children {
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil
	}

	name := iter.CurrentComponent()
	if path.IsGlob(name) {
		return nil, ErrNoSuchPath
	}
	child := n.getChild(t.pool, name)
	if child == nil {
		return nil, ErrNoSuchPath
	}

	child.mu.Lock()
	nested := child.nested
	child.mu.Unlock()
	next := iter.Next()
	if nested != nil {
		return nested.ListChildrenNested(next)
	}
	return t.listChildrenAt(child, next)
}

// PeekExecution returns the task/future pair stored at the exact path
// described by iter, delegating through nested subspaces along the way.
func (t *Tree) PeekExecution(iter path.Iterator) (taskAny any, futureAny any, err error) {
	return t.peekExecutionAt(t.root, iter)
}

func (t *Tree) peekExecutionAt(n *node, iter path.Iterator) (any, any, error) {
	if iter.IsAtEnd() {
		n.mu.Lock()
		q := n.payload
		n.mu.Unlock()
		if q == nil {
			return nil, nil, ErrNoSuchPath
		}
		taskAny, futureAny, ok := q.PeekExecutionEntry()
		if !ok {
			return nil, nil, ErrNoSuchPath
		}
		return taskAny, futureAny, nil
	}

	name := iter.CurrentComponent()
	if path.IsGlob(name) {
		return nil, nil, ErrNoSuchPath
	}
	child := n.getChild(t.pool, name)
	if child == nil {
		return nil, nil, ErrNoSuchPath
	}

	child.mu.Lock()
	nested := child.nested
	child.mu.Unlock()
	next := iter.Next()
	if nested != nil {
		return nested.PeekExecutionNested(next)
	}
	return t.peekExecutionAt(child, next)
}

// Walk performs a depth-first traversal starting at the tree's root,
// reporting one WalkEntry per visited node to fn. Returning false from
// fn stops the traversal early. Crossing into a nested subspace (when
// includeNested is set) delegates to NestedSpace.VisitNested, which
// restarts the depth/children budget relative to the nested subspace's
// own root.
func (t *Tree) Walk(fn WalkFunc, maxDepth, maxChildren int, includeNested, includeValues bool) bool {
	return t.walk(t.root, "/", 0, maxDepth, maxChildren, includeNested, includeValues, fn)
}

func (t *Tree) walk(n *node, p string, depth, maxDepth, maxChildren int, includeNested, includeValues bool, fn WalkFunc) bool {
	n.mu.Lock()
	valueCount := 0
	if n.payload != nil {
		valueCount = n.payload.ValueCount()
	}
	nested := n.nested
	childNames := make([]string, 0, len(n.children))
	for name := range n.children {
		childNames = append(childNames, name)
	}
	n.mu.Unlock()
	sort.Strings(childNames)

	if includeValues || valueCount == 0 {
		entry := WalkEntry{Path: p, ValueCount: valueCount, ChildrenCount: len(childNames), HasNested: nested != nil}
		if !fn(entry) {
			return false
		}
	}

	if nested != nil {
		if includeNested {
			return nested.VisitNested(p, fn, maxDepth, maxChildren, includeNested, includeValues)
		}
		return true
	}

	if maxDepth > 0 && depth >= maxDepth {
		return true
	}

	count := 0
	for _, name := range childNames {
		if maxChildren > 0 && count >= maxChildren {
			break
		}
		count++
		child := n.getChild(t.pool, name)
		if child == nil {
			continue
		}
		childPath := "/" + name
		if p != "/" {
			childPath = p + "/" + name
		}
		if !t.walk(child, childPath, depth+1, maxDepth, maxChildren, includeNested, includeValues, fn) {
			return false
		}
	}
	return true
}

// outGlobFinal mirrors Leaf.cpp's final-component glob handling: try
// every matching child in lexicographic order, returning the first
// successful read/pop; if at least one child matched but none yielded a
// value of the requested type, report a type error rather than
// not-found.
func (t *Tree) outGlobFinal(n *node, pattern string, meta queue.Meta, doExtract bool) (any, error) {
	var matches []string
	n.forEachChild(func(childName string, _ *node) {
		if path.MatchName(pattern, childName) {
			matches = append(matches, childName)
		}
	})
	if len(matches) == 0 {
		return nil, ErrNoSuchPath
	}
	sort.Strings(matches)

	foundAny := false
	for _, name := range matches {
		child := n.getChild(t.pool, name)
		if child == nil {
			continue
		}
		child.mu.Lock()
		q := child.payload
		child.mu.Unlock()
		if q == nil || q.Empty() {
			continue
		}
		foundAny = true

		var v any
		var err error
		if doExtract {
			v, err = q.DeserializePop(meta)
		} else {
			v, err = q.Deserialize(meta)
		}
		if err == nil {
			return v, nil
		}
	}
	if foundAny {
		return nil, queue.ErrInvalidType
	}
	return nil, ErrNoSuchPath
}
