// SPDX-License-Identifier: MIT

package pathspace

import (
	"github.com/gaissmai/pathspace/internal/tree"
)

// Visit performs a depth-first traversal of the space, reporting one
// VisitEntry per node (honoring opts) to visitor until it returns
// VisitStop or the traversal is exhausted.
func (ps *PathSpace) Visit(visitor Visitor, opts VisitOptions) error {
	ps.tr.Walk(func(w tree.WalkEntry) bool {
		entry := VisitEntry{
			Path:          w.Path,
			HasValues:     w.ValueCount > 0,
			HasNested:     w.HasNested,
			ValueCount:    w.ValueCount,
			ChildrenCount: w.ChildrenCount,
		}
		return visitor(entry) == VisitContinue
	}, opts.MaxDepth, opts.MaxChildren, opts.IncludeNestedSpaces, opts.IncludeValues)
	return nil
}
