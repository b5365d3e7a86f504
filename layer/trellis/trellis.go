// SPDX-License-Identifier: MIT

// Package trellis implements PathSpaceTrellis, a fan-in layer that
// serves reads from a rotating or priority-ordered set of source paths
// in a backing Base, configured at runtime through structured inserts
// at /_system/trellis/enable and /_system/trellis/disable.
//
// Grounded verbatim on
// original_source/src/pathspace/layer/PathSpaceTrellis.cpp/.hpp: the
// enable/disable control paths, the round-robin cursor carried in
// TrellisState, the non-blocking sweep-then-blocking-wait-on-one-source
// out() protocol, and latest mode's explicit NotSupported rejection
// (spec.md §9's open question leaves it unsupported pending design).
package trellis

import (
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/wait"
)

var _ pathspace.Base = (*Trellis)(nil)

// Mode selects how a fan-in's sources are consumed.
type Mode int

const (
	// Queue rotates across sources, draining each in turn.
	Queue Mode = iota
	// Latest is rejected at enable time: see EnableCommand.
	Latest
)

// Policy selects the order sources are swept in Queue mode.
type Policy int

const (
	RoundRobin Policy = iota
	Priority
)

// EnableCommand is the payload inserted at
// pathspace.TrellisEnablePath to register a new fan-in.
type EnableCommand struct {
	Name    string   // output path readers will address
	Sources []string // absolute source paths, no duplicates
	Mode    string   // "queue" (only supported value; "latest" is NotSupported)
	Policy  string   // "round_robin" | "priority"
}

// DisableCommand is the payload inserted at
// pathspace.TrellisDisablePath to tear down a fan-in.
type DisableCommand struct {
	Name string
}

// state is the live bookkeeping for one enabled fan-in.
type state struct {
	mu               sync.Mutex
	mode             Mode
	policy           Policy
	sources          []string
	roundRobinCursor int
	shuttingDown     bool
	// hint is a compact "source has data" cache the round-robin
	// policy consults before issuing a non-blocking read against a
	// source known (as of the last sweep) to be empty, avoiding an
	// O(n) upstream call on every source when a fan-in has many of
	// them and most are idle.
	hint *bitset.BitSet
}

// Trellis forwards ordinary operations to a backing Base and
// intercepts the two control paths plus any output path currently
// enabled as a fan-in.
type Trellis struct {
	backing pathspace.Base

	mu          sync.Mutex
	states      map[string]*state
	mountPrefix string
	ctx         *wait.Context
}

// New constructs a Trellis forwarding ordinary traffic to backing.
func New(backing pathspace.Base) *Trellis {
	return &Trellis{backing: backing, states: make(map[string]*state)}
}

func canonicalize(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

func canonicalizeSources(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, pathspace.NewError(pathspace.MalformedInput, "", "source list must not be empty")
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		c := canonicalize(r)
		if _, dup := seen[c]; dup {
			return nil, pathspace.NewError(pathspace.MalformedInput, c, "source list must not contain duplicate entries")
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// In intercepts the enable/disable control paths and rejects
// destinations under the reserved trellis state namespace; everything
// else forwards to the backing Base.
func (t *Trellis) In(iter path.Iterator, input pathspace.InsertInput) pathspace.InsertReturn {
	p := iter.String()
	switch p {
	case pathspace.TrellisEnablePath:
		return t.handleEnable(input)
	case pathspace.TrellisDisablePath:
		return t.handleDisable(input)
	}
	if pathspace.IsReservedTrellisState(p) {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPermissions, p, "path falls under the reserved trellis state namespace")}}
	}
	if t.backing == nil {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPermissions, p, "no backing space configured")}}
	}
	return t.backing.In(iter, input)
}

func (t *Trellis) handleEnable(input pathspace.InsertInput) pathspace.InsertReturn {
	cmd, ok := input.Value.(EnableCommand)
	if !ok {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidType, "", "enable command requires an EnableCommand payload")}}
	}

	outputPath := canonicalize(cmd.Name)
	if pathspace.IsReservedTrellisState(outputPath) {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPath, outputPath, "output path is reserved for trellis state")}}
	}

	sources, err := canonicalizeSources(cmd.Sources)
	if err != nil {
		return pathspace.InsertReturn{Errors: []error{err}}
	}
	if containsString(sources, outputPath) {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPath, outputPath, "output path cannot also be used as a source")}}
	}

	var mode Mode
	switch strings.ToLower(cmd.Mode) {
	case "queue":
		mode = Queue
	case "latest":
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.NotSupported, outputPath, "latest mode is not yet supported")}}
	default:
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.MalformedInput, outputPath, "unsupported trellis mode: "+cmd.Mode)}}
	}

	var policy Policy
	switch strings.ToLower(cmd.Policy) {
	case "round_robin":
		policy = RoundRobin
	case "priority":
		policy = Priority
	default:
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.MalformedInput, outputPath, "unsupported trellis policy: "+cmd.Policy)}}
	}

	t.mu.Lock()
	if _, exists := t.states[outputPath]; exists {
		t.mu.Unlock()
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPath, outputPath, "trellis already enabled for path")}}
	}
	t.states[outputPath] = &state{
		mode:    mode,
		policy:  policy,
		sources: sources,
		hint:    bitset.New(uint(len(sources))),
	}
	ctx := t.ctx
	t.mu.Unlock()

	if ctx != nil {
		ctx.Registry.Notify(outputPath)
	}
	return pathspace.InsertReturn{}
}

func (t *Trellis) handleDisable(input pathspace.InsertInput) pathspace.InsertReturn {
	cmd, ok := input.Value.(DisableCommand)
	if !ok {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidType, "", "disable command requires a DisableCommand payload")}}
	}
	outputPath := canonicalize(cmd.Name)

	t.mu.Lock()
	st, ok := t.states[outputPath]
	if ok {
		delete(t.states, outputPath)
	}
	ctx := t.ctx
	t.mu.Unlock()

	if !ok {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.NotFound, outputPath, "trellis not found for path")}}
	}
	st.mu.Lock()
	st.shuttingDown = true
	st.mu.Unlock()

	if ctx != nil {
		ctx.Registry.Notify(outputPath)
	}
	return pathspace.InsertReturn{}
}

// errCode reports the Code of err if it is a *pathspace.Error, or
// UnknownError otherwise.
func errCode(err error) pathspace.Code {
	if pe, ok := err.(*pathspace.Error); ok {
		return pe.Code
	}
	return pathspace.UnknownError
}

func isEmptySourceError(code pathspace.Code) bool {
	return code == pathspace.NoObjectFound || code == pathspace.NotFound || code == pathspace.NoSuchPath
}

// tryServeQueue sweeps every source once, non-blocking, starting at
// the round-robin cursor (or index 0 under priority), and advances the
// cursor past whichever source answered.
func (t *Trellis) tryServeQueue(st *state, meta queue.Meta, opts pathspace.OutOpts) (any, error) {
	if t.backing == nil {
		return nil, pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")
	}
	st.mu.Lock()
	if st.shuttingDown {
		st.mu.Unlock()
		return nil, pathspace.NewError(pathspace.Timeout, "", "trellis is shutting down")
	}
	sources := append([]string(nil), st.sources...)
	start := 0
	if st.policy == RoundRobin {
		start = st.roundRobinCursor
	}
	st.mu.Unlock()

	if len(sources) == 0 {
		return nil, pathspace.NewError(pathspace.NotFound, "", "no sources configured")
	}

	attempt := opts
	attempt.DoBlock = false
	attempt.IsMinimal = true

	// First pass: only probe sources the hint marks as having data
	// from a previous read, skipping indices known (as of the last
	// sweep) to be empty. Second pass below falls back to a real
	// sweep of the rest so a source that went from empty to
	// non-empty without us noticing still eventually gets served.
	//
	// Priority policy never reorders: a stale hint bit on a
	// lower-priority source must not let it jump ahead of a
	// higher-priority source earlier in st.sources, so the hint
	// partition only applies under RoundRobin.
	var order []int
	if st.policy == Priority {
		order = make([]int, len(sources))
		for i := range sources {
			order[i] = i
		}
	} else {
		order = make([]int, 0, len(sources))
		deferred := make([]int, 0, len(sources))
		for offset := 0; offset < len(sources); offset++ {
			idx := (start + offset) % len(sources)
			if st.hint != nil && st.hint.Test(uint(idx)) {
				order = append(order, idx)
			} else {
				deferred = append(deferred, idx)
			}
		}
		order = append(order, deferred...)
	}

	var lastErr error
	for _, idx := range order {
		v, err := t.backing.Out(path.NewIterator(sources[idx]), meta, attempt)
		if err == nil {
			st.mu.Lock()
			if st.hint != nil {
				st.hint.Set(uint(idx))
			}
			if st.policy == RoundRobin {
				st.roundRobinCursor = (idx + 1) % len(sources)
			}
			st.mu.Unlock()
			return v, nil
		}
		if !isEmptySourceError(errCode(err)) {
			return nil, err
		}
		st.mu.Lock()
		if st.hint != nil {
			st.hint.Clear(uint(idx))
		}
		st.mu.Unlock()
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, pathspace.NewError(pathspace.NoObjectFound, "", "no data available in sources")
}

// waitAndServeQueue blocks on a single source (the one the round-robin
// cursor currently points at) until deadline, for the case where a
// full non-blocking sweep found nothing.
func (t *Trellis) waitAndServeQueue(st *state, meta queue.Meta, opts pathspace.OutOpts, deadline time.Time) (any, error) {
	if t.backing == nil {
		return nil, pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")
	}
	st.mu.Lock()
	if st.shuttingDown {
		st.mu.Unlock()
		return nil, pathspace.NewError(pathspace.Timeout, "", "trellis is shutting down")
	}
	sources := append([]string(nil), st.sources...)
	waitIdx := 0
	if st.policy == RoundRobin {
		waitIdx = st.roundRobinCursor % len(sources)
	}
	st.mu.Unlock()

	if len(sources) == 0 {
		return nil, pathspace.NewError(pathspace.NotFound, "", "no sources configured")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, pathspace.NewError(pathspace.Timeout, "", "trellis wait timed out")
	}

	blocking := opts
	blocking.DoBlock = true
	blocking.IsMinimal = false
	blocking.Timeout = remaining

	v, err := t.backing.Out(path.NewIterator(sources[waitIdx]), meta, blocking)
	if err != nil {
		return nil, err
	}
	if st.policy == RoundRobin {
		st.mu.Lock()
		st.roundRobinCursor = (waitIdx + 1) % len(sources)
		st.mu.Unlock()
	}
	return v, nil
}

// Out serves a read for a path currently enabled as a fan-in, or
// forwards unmanaged paths straight through to the backing Base.
func (t *Trellis) Out(iter path.Iterator, meta queue.Meta, opts pathspace.OutOpts) (any, error) {
	p := canonicalize(t.mapAbsolute(iter.String()))

	t.mu.Lock()
	st := t.states[p]
	t.mu.Unlock()

	if st == nil {
		if t.backing == nil {
			return nil, pathspace.NewError(pathspace.NotFound, p, "path not managed by trellis")
		}
		return t.backing.Out(iter, meta, opts)
	}

	deadline := time.Now().Add(opts.Timeout)

	result, err := t.tryServeQueue(st, meta, opts)
	if err == nil || !opts.DoBlock {
		return result, err
	}
	return t.waitAndServeQueue(st, meta, opts, deadline)
}

func (t *Trellis) mapAbsolute(p string) string {
	t.mu.Lock()
	prefix := t.mountPrefix
	t.mu.Unlock()
	if prefix == "" || prefix == "/" {
		return p
	}
	if p == "" || p == "/" {
		return prefix
	}
	if strings.HasPrefix(p, "/") {
		return prefix + p
	}
	return prefix + "/" + p
}

// Notify forwards the notification to the adopted context's registry.
func (t *Trellis) Notify(p string) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	if ctx != nil {
		ctx.Registry.Notify(p)
	}
}

// Shutdown marks every enabled fan-in as shutting down and clears the
// registry, without shutting down the backing Base (its lifecycle is
// managed externally, same as layer/alias).
func (t *Trellis) Shutdown() {
	t.mu.Lock()
	snapshot := t.states
	t.states = make(map[string]*state)
	ctx := t.ctx
	t.mu.Unlock()

	for _, st := range snapshot {
		st.mu.Lock()
		st.shuttingDown = true
		st.mu.Unlock()
	}
	if ctx != nil {
		ctx.Registry.Clear()
	}
}

// Visit forwards to the backing Base; fan-in output paths are virtual
// and not reported as tree nodes.
func (t *Trellis) Visit(visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if t.backing == nil {
		return pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")
	}
	return t.backing.Visit(visitor, opts)
}

// PackInsert loops over paths, same simplification as the facade's own
// PackInsert: no true batching, just aggregated per-path results.
func (t *Trellis) PackInsert(paths []string, input pathspace.InsertInput) (pathspace.InsertReturn, error) {
	var total pathspace.InsertReturn
	for _, p := range paths {
		ret := t.In(path.NewIterator(p), input)
		total.ValuesInserted += ret.ValuesInserted
		total.SpacesInserted += ret.SpacesInserted
		total.TasksInserted += ret.TasksInserted
		total.Errors = append(total.Errors, ret.Errors...)
	}
	return total, nil
}

// AdoptContextAndPrefix captures the shared context and this layer's
// own mount prefix, used to resolve fan-in output paths addressed
// relative to the mount and to route control-path notifications.
func (t *Trellis) AdoptContextAndPrefix(ctx *wait.Context, prefix string) {
	t.mu.Lock()
	t.ctx = ctx
	t.mountPrefix = prefix
	t.mu.Unlock()
}
