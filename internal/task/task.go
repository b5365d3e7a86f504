// SPDX-License-Identifier: MIT

// Package task implements the Task state machine, the thread-pool
// Executor, and the typed promise/future pair that back executable
// values inserted into a PathSpace.
//
// Grounded on original_source/src/pathspace/task/{Task,TaskPool,Future,
// IFutureAny,TaskT}.{hpp,cpp}: Created->Started->Running->Completed|Failed
// advanced by atomic compare-and-swap, idempotent re-submission of an
// already-started task, and an optional NotificationSink fired once on
// completion. The sink is held as a plain (strong) interface reference,
// not a weak one, so a Task keeps its sink alive.
package task

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a Task's position in its Created->Started->Running->
// Completed|Failed lifecycle.
type State int32

const (
	Created State = iota
	Started
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Category mirrors original_source's ExecutionCategory: Immediate tasks
// are scheduled as soon as they are inserted; Lazy tasks are only
// scheduled the first time a reader reaches their slot.
type Category int

const (
	Immediate Category = iota
	Lazy
)

// NotificationSink receives a single notification when a task completes
// or fails, so a blocked reader on the task's path can be woken.
type NotificationSink interface {
	NotifyPathChanged(path string)
}

// Task wraps a callable together with its state machine, an
// id for correlation/logging, the path to notify on completion, and the
// opaque FutureAny that will be fulfilled when the callable returns.
type Task struct {
	ID               uuid.UUID
	NotificationPath string
	Category         Category

	state atomic.Int32

	fn       func() (any, error)
	future   *FutureAny
	notifier NotificationSink
}

// New constructs a Task wrapping fn. The returned FutureAny is fulfilled
// with fn's result once the task runs.
func New(notificationPath string, category Category, notifier NotificationSink, fn func() (any, error)) (*Task, *FutureAny) {
	state := newSharedState()
	fut := &FutureAny{state: state}
	t := &Task{
		ID:               uuid.New(),
		NotificationPath: notificationPath,
		Category:         category,
		fn:               fn,
		future:           fut,
		notifier:         notifier,
	}
	return t, fut
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// HasStarted reports whether the task has left the Created state.
func (t *Task) HasStarted() bool { return t.State() != Created }

// TryStart attempts the Created->Started transition. Returns true on
// success; false if some other goroutine already advanced the state
// (the caller should then check HasStarted and treat it as success,
// matching TaskPool::addTask's idempotent-resubmission rule).
func (t *Task) TryStart() bool {
	return t.state.CompareAndSwap(int32(Created), int32(Started))
}

func (t *Task) transitionToRunning() {
	t.state.CompareAndSwap(int32(Started), int32(Running))
}

func (t *Task) markCompleted() {
	t.state.Store(int32(Completed))
}

func (t *Task) markFailed() {
	t.state.Store(int32(Failed))
}

// run executes the task's callable, containing any panic, then
// transitions state, fulfills the future, and notifies.
func (t *Task) run() {
	t.transitionToRunning()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError{recovered: r}
			}
		}()
		result, err = t.fn()
	}()

	if err != nil {
		t.markFailed()
		t.future.setError(err)
	} else {
		t.markCompleted()
		t.future.setValue(result)
	}

	if t.NotificationPath != "" && t.notifier != nil {
		t.notifier.NotifyPathChanged(t.NotificationPath)
	}
}

type panicError struct{ recovered any }

func (p panicError) Error() string {
	return "pathspace: task panicked"
}
