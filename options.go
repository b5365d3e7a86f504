// SPDX-License-Identifier: MIT

package pathspace

import (
	"time"

	"github.com/gaissmai/pathspace/internal/task"
)

// ValidationLevel controls how strictly Insert validates the
// destination path before attempting the write.
type ValidationLevel int

const (
	ValidationNone ValidationLevel = iota
	ValidationBasic
	ValidationFull
)

// ExecutionCategory mirrors internal/task.Category at the public API:
// Immediate tasks are scheduled on insert, Lazy tasks when ReadFuture
// first reaches their slot. Read and Take never schedule a Lazy task.
type ExecutionCategory = task.Category

const (
	Immediate = task.Immediate
	Lazy      = task.Lazy
)

// InsertOptions configures a single Insert call.
type InsertOptions struct {
	ValidationLevel  ValidationLevel
	ExecutionCategory ExecutionCategory
}

// ReadOptions configures a Read or Take call.
type ReadOptions struct {
	DoBlock bool
	DoPop   bool
	Timeout time.Duration
}

// VisitOptions configures a Visit traversal.
type VisitOptions struct {
	MaxDepth            int // 0 means unlimited
	MaxChildren         int // 0 means unlimited
	IncludeNestedSpaces bool
	IncludeValues       bool
}

// VisitControl is returned by a Visitor to continue or stop a traversal.
type VisitControl int

const (
	VisitContinue VisitControl = iota
	VisitStop
)

// VisitEntry describes one node reported to a Visitor.
type VisitEntry struct {
	Path          string
	HasValues     bool
	HasNested     bool
	ValueCount    int
	ChildrenCount int
}

// Visitor is invoked once per visited node in depth-first order.
type Visitor func(entry VisitEntry) VisitControl

// CopyStats reports what Clone() actually copied.
type CopyStats struct {
	ValuesCopied  int
	SpacesCopied  int
	SpacesSkipped int
	TasksDropped  int
}
