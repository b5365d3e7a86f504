// SPDX-License-Identifier: MIT

// Package tree implements the concurrent path-addressed node tree that
// backs a PathSpace: per-node child maps guarded by a payload mutex,
// ordered heterogeneous payload queues (internal/queue.NodeData), and
// the structural In (insert) / Out (read/pop) algorithms.
//
// Grounded verbatim on original_source/src/pathspace/core/Leaf.cpp's
// inAtNode/outAtNode, generalized from a single concrete tree to the
// generic "nested subspace" seam that PathSpaceBase implementations
// plug into (layer/alias, layer/trellis, layer/snapshotcache all sit
// behind that seam rather than inside this package).
package tree

import (
	"sync"

	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
)

// NestedSpace is the narrow seam a child node's "nested" slot is stored
// behind. The concrete *pathspace.PathSpace (and any PathSpaceBase
// layer) satisfies this without internal/tree importing the root
// package, avoiding an import cycle.
type NestedSpace interface {
	InNested(iter path.Iterator, input InputData) InsertReturn
	OutNested(iter path.Iterator, meta queue.Meta, doExtract bool) (any, error)
	ListChildrenNested(iter path.Iterator) ([]string, error)
	PeekExecutionNested(iter path.Iterator) (taskAny any, futureAny any, err error)
	VisitNested(pathPrefix string, fn WalkFunc, maxDepth, maxChildren int, includeNested, includeValues bool) bool

	// CloneNested returns a deep copy of the mounted nested space for
	// Tree.Clone to attach at the corresponding mount point in the
	// cloned tree. An error (or a nil NestedSpace) tells the caller to
	// skip this mount rather than fail the whole clone.
	CloneNested() (NestedSpace, error)
}

// WalkEntry describes one node reported by Tree.Walk, the tree-level
// counterpart of the facade's VisitEntry.
type WalkEntry struct {
	Path          string
	ValueCount    int
	ChildrenCount int
	HasNested     bool
}

// WalkFunc is invoked once per visited node; returning false stops the walk.
type WalkFunc func(WalkEntry) bool

// node is one vertex of the tree: a set of named children plus an
// optional payload queue and an optional live nested subspace. Exactly
// one of (non-empty payload, nested) is meaningful for a given node at
// a time in the common case, but both fields exist independently
// because a node can transition from data-bearing to nested-bearing
// only via explicit insertion of a subspace at that exact path.
type node struct {
	mu       sync.Mutex
	children map[string]*node

	payload *queue.NodeData
	nested  NestedSpace
}

func (n *node) reset() {
	n.children = nil
	n.payload = nil
	n.nested = nil
}

func (n *node) hasChildren() bool {
	return len(n.children) > 0
}

func (n *node) hasData() bool {
	return n.payload != nil && !n.payload.Empty()
}

func (n *node) hasNestedSpace() bool {
	return n.nested != nil
}

// getChild returns the existing child named name, or nil.
func (n *node) getChild(p *pool, name string) *node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return nil
	}
	return n.children[name]
}

// getOrCreateChild returns the existing child named name, creating (via
// the pool) and registering one if absent.
func (n *node) getOrCreateChild(p *pool, name string) *node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	if c, ok := n.children[name]; ok {
		return c
	}
	c := p.Get()
	n.children[name] = c
	return c
}

// forEachChild snapshots the current child (name, node) pairs under the
// lock and invokes fn outside of it, matching Leaf.cpp's for_each which
// iterates a concurrent map without holding per-child locks.
func (n *node) forEachChild(fn func(name string, child *node)) {
	n.mu.Lock()
	snapshot := make(map[string]*node, len(n.children))
	for k, v := range n.children {
		snapshot[k] = v
	}
	n.mu.Unlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}

// ensureData returns the node's payload queue, creating it if absent.
func (n *node) ensureData() *queue.NodeData {
	if n.payload == nil {
		n.payload = queue.New()
	}
	return n.payload
}

// clearRecursive releases every child back to the pool, depth-first.
func (n *node) clearRecursive(p *pool) {
	n.mu.Lock()
	children := n.children
	n.children = nil
	n.mu.Unlock()
	for _, c := range children {
		c.clearRecursive(p)
		p.Put(c)
	}
}
