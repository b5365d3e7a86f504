// SPDX-License-Identifier: MIT

package pathspace

import (
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/tree"
)

// nestedAdapter satisfies tree.NestedSpace for a *PathSpace mounted as
// a nested subspace: it forwards the remaining path iterator straight
// into the nested space's own Tree, single-shot, with no blocking —
// the blocking retry loop lives exactly once, at the top-level facade
// call that eventually reaches this mount (spec.md §4.4: "isMinimal"
// forwarding).
type nestedAdapter struct {
	ps *PathSpace
}

func (na nestedAdapter) InNested(iter path.Iterator, input tree.InputData) tree.InsertReturn {
	var ret tree.InsertReturn
	na.ps.tr.In(iter, input, &ret)
	if ret.ValuesInserted > 0 || ret.SpacesInserted > 0 {
		na.ps.Notify(iter.String())
	}
	return ret
}

func (na nestedAdapter) OutNested(iter path.Iterator, meta queue.Meta, doExtract bool) (any, error) {
	v, err := na.ps.tr.Out(iter, meta, doExtract)
	if err == nil {
		na.ps.Notify(iter.String())
	}
	return v, err
}

func (na nestedAdapter) ListChildrenNested(iter path.Iterator) ([]string, error) {
	return na.ps.tr.ListChildren(iter)
}

func (na nestedAdapter) PeekExecutionNested(iter path.Iterator) (any, any, error) {
	return na.ps.tr.PeekExecution(iter)
}

func (na nestedAdapter) VisitNested(pathPrefix string, fn tree.WalkFunc, maxDepth, maxChildren int, includeNested, includeValues bool) bool {
	return na.ps.tr.Walk(fn, maxDepth, maxChildren, includeNested, includeValues)
}

// CloneNested deep-copies the mounted nested *PathSpace by delegating
// to its own Clone, so Tree.Clone can reattach an independent copy of
// the whole nested structure at the same mount point (spec.md §6.1).
func (na nestedAdapter) CloneNested() (tree.NestedSpace, error) {
	if na.ps == nil {
		return nil, newError(InvalidType, "", "nested mount has no backing space to clone")
	}
	cloned, _ := na.ps.Clone()
	return nestedAdapter{cloned}, nil
}
