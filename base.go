// SPDX-License-Identifier: MIT

package pathspace

import (
	"time"

	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/wait"
)

// Base is the layering contract every PathSpaceBase implementation
// (the concrete PathSpace, and the alias/trellis/snapshotcache layers)
// satisfies, per spec.md §6.2. Layers compose by holding a Base as
// their backing space and intercepting a subset of these operations.
type Base interface {
	In(iter path.Iterator, input InsertInput) InsertReturn
	Out(iter path.Iterator, meta queue.Meta, opts OutOpts) (any, error)
	Notify(p string)
	Shutdown()
	Visit(visitor Visitor, opts VisitOptions) error

	// PackInsert is the batched variant operating over several paths
	// sharing one input shape; layers may refuse non-trivial batches
	// with a NotSupported error rather than implement true batching.
	PackInsert(paths []string, input InsertInput) (InsertReturn, error)

	// AdoptContextAndPrefix re-parents this subspace under ctx, mounted
	// at prefix (invariant I-3: a nested space adopts its parent's
	// context and prefix at the moment it is inserted).
	AdoptContextAndPrefix(ctx *wait.Context, prefix string)
}

// InsertInput is the Base-level counterpart of tree.InputData, adding
// the metadata (validation level, execution category) the facade
// resolves before handing off to the tree.
type InsertInput struct {
	Value            any
	Category         queue.Category
	Task             any
	Future           any
	NestedSpace      any
	IsNestedSpace    bool
	ExecutionCategory ExecutionCategory
}

// OutOpts is the Base-level counterpart of ReadOptions, plus the
// isMinimal flag used for single-shot forwarding into a nested space
// (spec.md §4.4: "If isMinimal is set → single attempt, return.").
type OutOpts struct {
	DoBlock   bool
	DoPop     bool
	IsMinimal bool
	Timeout   time.Duration
}
