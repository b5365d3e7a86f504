// SPDX-License-Identifier: MIT

package wait

import (
	"sync/atomic"

	"github.com/gaissmai/pathspace/internal/task"
)

// NotificationSink is fired once when a submitted task completes or
// fails. Grounded on original_source/src/pathspace/core/PathSpaceContext.hpp,
// whose context carries a weak pointer to an equivalent sink so a task
// can notify waiters without depending on the full PathSpace type.
type NotificationSink interface {
	NotifyPathChanged(path string)
}

// Executor is the minimal surface the wait package needs from the task
// subsystem; internal/task.Pool satisfies it directly.
type Executor interface {
	Submit(t *task.Task) error
}

// Context bundles everything a PathSpace and its nested subspaces share:
// the wait registry, a handle back to the owning space for notification,
// the task executor, and a shutdown flag. A nested subspace adopts its
// parent's Context wholesale on insertion (invariant I-3).
type Context struct {
	Registry *Registry
	Sink     NotificationSink
	Executor Executor

	shuttingDown atomic.Bool
}

// NewContext constructs a Context with a fresh Registry.
func NewContext(sink NotificationSink, exec Executor) *Context {
	return &Context{
		Registry: NewRegistry(),
		Sink:     sink,
		Executor: exec,
	}
}

// RequestShutdown flips the shutdown flag and wakes every waiter so
// blocked Out calls can observe it and return a timeout/shutdown error
// instead of hanging forever.
func (c *Context) RequestShutdown() {
	c.shuttingDown.Store(true)
	c.Registry.NotifyAll()
}

// ShuttingDown reports whether RequestShutdown has been called.
func (c *Context) ShuttingDown() bool {
	return c.shuttingDown.Load()
}

// Adopt rebinds this Context's Sink/Executor to match a parent's, used
// when a nested subspace is adopted in place (invariant I-3): the child
// keeps its own Registry (waiters on the child's own paths are
// unaffected) but now notifies and schedules through the parent.
func (c *Context) Adopt(parent *Context) {
	c.Sink = parent.Sink
	c.Executor = parent.Executor
}
