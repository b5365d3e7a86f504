// SPDX-License-Identifier: MIT

// Package pathspace implements an in-process, hierarchical,
// concurrent path-addressed value/task space: a tree of nodes
// addressed by POSIX-like paths, each holding an ordered FIFO queue of
// values, nested subspaces, and executable tasks.
package pathspace

import (
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gaissmai/pathspace/internal/envcfg"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/task"
	"github.com/gaissmai/pathspace/internal/tree"
	"github.com/gaissmai/pathspace/internal/wait"
)

// Logger is the package-level logger every PathSpace uses for its
// debug breadcrumbs on insert/notify/shutdown/clone and its warnings on
// failed task submission; the blocking out loop does not log. Tests
// and embedding applications may replace it wholesale.
var Logger zerolog.Logger = log.Logger

// defaultWorkerCount is the size of the executor pool a PathSpace
// starts when none is supplied via WithExecutor.
const defaultWorkerCount = 4

// TaskFunc marks a value inserted via Insert as an executable task
// rather than a plain value, distinguishing it from a *PathSpace
// (nested-space mount) or any other payload without reflection.
type TaskFunc func() (any, error)

// PathSpace is the concrete root PathSpaceBase implementation: a
// structural Tree plus the shared Context (wait registry, executor,
// shutdown flag) and the mount prefix under which it was adopted, if
// any (invariant I-3).
type PathSpace struct {
	tr     *tree.Tree
	ctx    *wait.Context
	clamp  envcfg.TimeoutClamp
	prefix string
	log    zerolog.Logger
}

// New constructs an empty, ready-to-use PathSpace with its own
// executor pool and wait registry.
func New() *PathSpace {
	pool := task.NewPool(defaultWorkerCount)
	ps := &PathSpace{
		tr:  tree.New(),
		log: Logger,
	}
	ps.ctx = wait.NewContext(ps, pool)
	if clamp, err := envcfg.Load(); err == nil {
		ps.clamp = clamp
	}
	return ps
}

// NotifyPathChanged satisfies both wait.NotificationSink and
// task.NotificationSink: a completed task, or any other writer,
// notifies through this single entry point.
func (ps *PathSpace) NotifyPathChanged(p string) {
	ps.Notify(p)
}

// Notify wakes at least one blocked reader on p, if any.
func (ps *PathSpace) Notify(p string) {
	ps.log.Debug().Str("path", p).Msg("notify")
	ps.ctx.Registry.Notify(p)
}

// Shutdown flips the shutdown flag, wakes every blocked reader, and
// drains the executor pool.
func (ps *PathSpace) Shutdown() {
	ps.log.Debug().Msg("shutdown")
	ps.ctx.RequestShutdown()
	if pool, ok := ps.ctx.Executor.(*task.Pool); ok {
		pool.Shutdown()
	}
}

// Clear removes every node, value, and nested mount from the space.
// It does not affect the wait registry or executor.
func (ps *PathSpace) Clear() {
	ps.tr.Clear()
}

// Insert stores value at p according to opts, returning how many
// values/spaces/tasks were actually inserted and any per-destination
// errors (a glob destination may fan out to several children).
func (ps *PathSpace) Insert(p string, value any, opts InsertOptions) InsertReturn {
	if opts.ValidationLevel >= ValidationBasic {
		if err := validatePath(p, opts.ValidationLevel); err != nil {
			return InsertReturn{Errors: []error{err}}
		}
	}

	input := ps.buildInput(p, value, opts)

	iter := path.NewIterator(p)
	var ret tree.InsertReturn
	ps.tr.In(iter, input, &ret)

	ps.log.Debug().Str("path", p).Int("values", ret.ValuesInserted).
		Int("spaces", ret.SpacesInserted).Int("tasks", ret.TasksInserted).Msg("insert")

	if ret.ValuesInserted > 0 || ret.SpacesInserted > 0 {
		ps.Notify(p)
	}

	return InsertReturn{
		ValuesInserted: ret.ValuesInserted,
		SpacesInserted: ret.SpacesInserted,
		TasksInserted:  ret.TasksInserted,
		Errors:         ret.Errors,
	}
}

// buildInput classifies value into a plain value, a nested-space
// mount, or an executable task, submitting Immediate-category tasks to
// the executor right away.
func (ps *PathSpace) buildInput(p string, value any, opts InsertOptions) tree.InputData {
	switch v := value.(type) {
	case *PathSpace:
		v.AdoptContextAndPrefix(ps.ctx, p)
		return tree.InputData{Kind: tree.InputNestedSpace, NestedSpace: nestedAdapter{v}}
	case TaskFunc:
		t, fut := task.New(p, opts.ExecutionCategory, ps, func() (any, error) { return v() })
		if opts.ExecutionCategory == Immediate {
			if err := ps.ctx.Executor.Submit(t); err != nil {
				ps.log.Warn().Str("path", p).Err(err).Msg("immediate task submission failed")
			}
		}
		return tree.InputData{Kind: tree.InputTask, Task: t, Future: fut}
	default:
		return tree.InputData{Kind: tree.InputValue, Value: value, Category: queue.CategoryFundamental}
	}
}

// AdoptContextAndPrefix re-parents this subspace under a parent's
// context, mounted at prefix (invariant I-3): the child keeps its own
// wait registry but now notifies and schedules through the parent.
func (ps *PathSpace) AdoptContextAndPrefix(parent *wait.Context, prefix string) {
	ps.prefix = prefix
	ps.ctx.Adopt(parent)
}

// Read performs a non-destructive typed read at p.
func Read[T any](ps *PathSpace, p string, opts ReadOptions) (T, error) {
	return readOrTake[T](ps, p, opts, false)
}

// Take performs a destructive typed read (pop) at p.
func Take[T any](ps *PathSpace, p string, opts ReadOptions) (T, error) {
	return readOrTake[T](ps, p, opts, true)
}

func readOrTake[T any](ps *PathSpace, p string, opts ReadOptions, doPop bool) (T, error) {
	var zero T
	meta := queue.Meta{Type: reflect.TypeOf(zero), Category: queue.CategoryFundamental}

	v, err := ps.out(p, meta, opts.DoBlock, doPop, opts.Timeout, false)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, newError(InvalidType, p, "stored value does not match requested type")
	}
	return typed, nil
}

// out implements spec.md §4.4's blocking read/pop protocol.
func (ps *PathSpace) out(p string, meta queue.Meta, doBlock, doPop bool, timeout time.Duration, isMinimal bool) (any, error) {
	iter := path.NewIterator(p)

	attempt := func() (any, error, bool) {
		v, err := ps.tr.Out(iter, meta, doPop)
		if err == nil {
			return v, nil, true
		}
		return nil, classifyOutError(p, err), false
	}

	if v, err, ok := attempt(); ok {
		ps.Notify(p)
		return v, nil
	} else if isMinimal {
		return nil, err
	} else if !doBlock {
		return nil, err
	}

	deadline := ps.clamp.Deadline(time.Now(), timeout)

	if v, _, ok := attempt(); ok {
		ps.Notify(p)
		return v, nil
	}

	slice := time.Millisecond
	iteration := 0
	for {
		if ps.ctx.ShuttingDown() {
			return nil, newError(Timeout, p, "shutting down")
		}
		now := time.Now()
		if !now.Before(deadline) {
			return nil, newError(Timeout, p, "deadline exceeded")
		}

		if v, _, ok := attempt(); ok {
			ps.Notify(p)
			return v, nil
		}

		guard := ps.ctx.Registry.Wait(p)
		remaining := deadline.Sub(time.Now())
		waitFor := slice
		if waitFor > remaining {
			waitFor = remaining
		}
		guard.WaitUntil(time.Now().Add(waitFor))

		if slice < 8*time.Millisecond {
			slice *= 2
			if slice > 8*time.Millisecond {
				slice = 8 * time.Millisecond
			}
		}

		iteration++
		if iteration%8 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func classifyOutError(p string, err error) error {
	switch err {
	case tree.ErrNoSuchPath:
		return newError(NoSuchPath, p, "no such path")
	case tree.ErrInvalidPathSubcomponent:
		return newError(InvalidPathSubcomponent, p, "data leaf blocks deeper structure")
	case queue.ErrInvalidType:
		return newError(InvalidType, p, "stored value does not match requested type")
	case queue.ErrNoObjectFound:
		return newError(NoObjectFound, p, "no object of the requested kind")
	default:
		return wrapError(UnknownError, p, err)
	}
}

// ReadFuture returns a type-erased handle on the execution slot at p,
// scheduling a Lazy-category task the first time it is observed.
func (ps *PathSpace) ReadFuture(p string) (*task.FutureAny, error) {
	iter := path.NewIterator(p)
	taskAny, futureAny, err := ps.tr.PeekExecution(iter)
	if err != nil {
		return nil, classifyOutError(p, err)
	}

	t, ok := taskAny.(*task.Task)
	if !ok {
		return nil, newError(InvalidType, p, "slot does not hold an executable task")
	}
	if t.Category == Lazy && !t.HasStarted() {
		if err := ps.ctx.Executor.Submit(t); err != nil {
			ps.log.Warn().Str("path", p).Err(err).Msg("lazy task submission failed")
		}
	}

	fut, ok := futureAny.(*task.FutureAny)
	if !ok {
		return nil, newError(InvalidType, p, "slot future has unexpected type")
	}
	return fut, nil
}

// ListChildren returns the names of the children of the node at p.
func (ps *PathSpace) ListChildren(p string) ([]string, error) {
	names, err := ps.tr.ListChildren(path.NewIterator(p))
	if err != nil {
		return nil, classifyOutError(p, err)
	}
	return names, nil
}

func validatePath(p string, level ValidationLevel) error {
	if len(p) == 0 || p[0] != '/' {
		return newError(InvalidPath, p, "path must be non-empty and start with '/'")
	}
	if len(p) > 1 && p[len(p)-1] == '/' {
		return newError(InvalidPath, p, "path must not have a trailing '/'")
	}
	if IsReservedTrellisState(p) {
		return newError(InvalidPermissions, p, "path falls under the reserved trellis state namespace")
	}
	return nil
}
