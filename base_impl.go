// SPDX-License-Identifier: MIT

package pathspace

import (
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/tree"
)

// In is the Base-contract structural insert: a lower-level entry point
// than Insert that takes an already-positioned iterator and an
// already-classified InsertInput, with no path validation. Layers
// (alias, trellis, snapshotcache) call this after rewriting the
// destination.
func (ps *PathSpace) In(iter path.Iterator, input InsertInput) InsertReturn {
	data := tree.InputData{
		Category: input.Category,
		Value:    input.Value,
		Task:     input.Task,
		Future:   input.Future,
	}
	switch {
	case input.IsNestedSpace:
		data.Kind = tree.InputNestedSpace
		if nested, ok := input.NestedSpace.(*PathSpace); ok {
			nested.AdoptContextAndPrefix(ps.ctx, iter.String())
			data.NestedSpace = nestedAdapter{nested}
		} else if ns, ok := input.NestedSpace.(tree.NestedSpace); ok {
			data.NestedSpace = ns
		}
	case input.Task != nil:
		data.Kind = tree.InputTask
	default:
		data.Kind = tree.InputValue
	}

	var ret tree.InsertReturn
	ps.tr.In(iter, data, &ret)
	if ret.ValuesInserted > 0 || ret.SpacesInserted > 0 {
		ps.Notify(iter.String())
	}
	return InsertReturn{
		ValuesInserted: ret.ValuesInserted,
		SpacesInserted: ret.SpacesInserted,
		TasksInserted:  ret.TasksInserted,
		Errors:         ret.Errors,
	}
}

// Out is the Base-contract structural read/pop: a single attempt with
// no blocking when opts.IsMinimal is set (nested/layer forwarding),
// otherwise the full blocking protocol of spec.md §4.4.
func (ps *PathSpace) Out(iter path.Iterator, meta queue.Meta, opts OutOpts) (any, error) {
	return ps.out(iter.String(), meta, !opts.IsMinimal && opts.DoBlock, opts.DoPop, opts.Timeout, opts.IsMinimal)
}

// PackInsert is the batched variant of In operating over several paths
// sharing one input shape. PathSpace itself has no specialized batch
// path, so it simply loops — a layer overriding PackInsert for true
// batching (e.g. a single backing-space lock) may refuse instead with
// NotSupported, per the Base contract.
func (ps *PathSpace) PackInsert(paths []string, input InsertInput) (InsertReturn, error) {
	var total InsertReturn
	for _, p := range paths {
		ret := ps.In(path.NewIterator(p), input)
		total.ValuesInserted += ret.ValuesInserted
		total.SpacesInserted += ret.SpacesInserted
		total.TasksInserted += ret.TasksInserted
		total.Errors = append(total.Errors, ret.Errors...)
	}
	return total, nil
}
