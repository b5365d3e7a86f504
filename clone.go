// SPDX-License-Identifier: MIT

package pathspace

// Clone returns a deep copy of values and structure: every stored
// value is copied (queue.NodeData.Clone: through its Clone method when
// it implements Cloner, otherwise as a plain Go value) and every mounted nested
// subspace is itself cloned recursively and reattached at the same
// mount point, per spec.md §6.1. Only execution (task/future) payloads
// are dropped, per invariant I-4. A nested mount whose clone attempt
// fails is skipped rather than aborting the whole copy; SpacesSkipped
// reports how many. The clone gets its own executor pool and wait
// registry — it shares nothing with ps.
func (ps *PathSpace) Clone() (*PathSpace, CopyStats) {
	clonedTree, stats := ps.tr.Clone()

	out := New()
	out.tr = clonedTree

	ps.log.Debug().
		Int("values", stats.ValuesCopied).
		Int("spacesCopied", stats.SpacesCopied).
		Int("spacesSkipped", stats.SpacesSkipped).
		Int("tasksDropped", stats.TasksDropped).
		Msg("clone")

	return out, CopyStats{
		ValuesCopied:  stats.ValuesCopied,
		SpacesCopied:  stats.SpacesCopied,
		SpacesSkipped: stats.SpacesSkipped,
		TasksDropped:  stats.TasksDropped,
	}
}
