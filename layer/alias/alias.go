// SPDX-License-Identifier: MIT

// Package alias implements PathAlias, a lightweight mount layer that
// forwards every Base operation to an upstream Base after rewriting
// the path under a retargetable prefix.
//
// Grounded verbatim on
// original_source/src/pathspace/layer/PathAlias.hpp: atomic retarget
// via setTargetPrefix (which notifies the alias's own mount path so
// waiters re-check), and transparent forwarding of in/out/notify with
// the alias path mapped onto prefix+currentToEnd().
package alias

import (
	"strings"
	"sync"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/wait"
)

var _ pathspace.Base = (*Alias)(nil)

// Alias forwards to an upstream Base by rewriting the path with a
// target prefix. The alias itself can be mounted anywhere in a parent
// PathSpace; retargeting is atomic and wakes waiters on the alias's
// own mount path.
type Alias struct {
	upstream pathspace.Base

	mu           sync.Mutex
	targetPrefix string
	mountPrefix  string
	ctx          *wait.Context
}

// New constructs an Alias forwarding to upstream under targetPrefix.
func New(upstream pathspace.Base, targetPrefix string) *Alias {
	a := &Alias{upstream: upstream}
	a.SetTargetPrefix(targetPrefix)
	return a
}

// SetTargetPrefix atomically changes the forwarding prefix and, if a
// context has been adopted, notifies the alias's own mount path so
// blocked readers re-check against the new target.
func (a *Alias) SetTargetPrefix(newPrefix string) {
	normalized := normalizePrefix(newPrefix)

	a.mu.Lock()
	a.targetPrefix = normalized
	ctx := a.ctx
	mountRoot := a.mountPrefix
	a.mu.Unlock()

	if ctx == nil {
		return
	}
	if mountRoot != "" {
		ctx.Registry.Notify(mountRoot)
	} else {
		ctx.Registry.NotifyAll()
	}
}

// TargetPrefix returns a thread-safe snapshot of the current target prefix.
func (a *Alias) TargetPrefix() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetPrefix
}

func normalizePrefix(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func joinPaths(prefix, tail string) string {
	if prefix == "" {
		return tail
	}
	if tail == "" {
		return prefix
	}
	prefixEndsSlash := strings.HasSuffix(prefix, "/")
	tailStartsSlash := strings.HasPrefix(tail, "/")
	switch {
	case prefixEndsSlash && tailStartsSlash:
		return prefix + tail[1:]
	case !prefixEndsSlash && !tailStartsSlash:
		return prefix + "/" + tail
	default:
		return prefix + tail
	}
}

func (a *Alias) mapPath(iter path.Iterator) string {
	return joinPaths(a.TargetPrefix(), iter.CurrentToEnd())
}

func (a *Alias) mapPathRaw(p string) string {
	return joinPaths(a.TargetPrefix(), p)
}

func (a *Alias) stripTargetPrefix(upstreamPath string) string {
	prefix := a.TargetPrefix()
	if prefix == "" || prefix == "/" {
		return upstreamPath
	}
	if upstreamPath == prefix {
		return "/"
	}
	if len(upstreamPath) > len(prefix) && strings.HasPrefix(upstreamPath, prefix) {
		remainder := upstreamPath[len(prefix):]
		if remainder == "" {
			return "/"
		}
		if remainder[0] != '/' {
			return "/" + remainder
		}
		return remainder
	}
	return upstreamPath
}

// In maps iter onto the target prefix and forwards to the upstream Base.
func (a *Alias) In(iter path.Iterator, input pathspace.InsertInput) pathspace.InsertReturn {
	if a.upstream == nil {
		return pathspace.InsertReturn{Errors: []error{errUpstreamUnset}}
	}
	mapped := path.NewIterator(a.mapPath(iter))
	return a.upstream.In(mapped, input)
}

// Out maps iter onto the target prefix and forwards to the upstream Base.
func (a *Alias) Out(iter path.Iterator, meta queue.Meta, opts pathspace.OutOpts) (any, error) {
	if a.upstream == nil {
		return nil, errUpstreamUnset
	}
	mapped := path.NewIterator(a.mapPath(iter))
	return a.upstream.Out(mapped, meta, opts)
}

// Notify maps p onto the target prefix and notifies the upstream Base.
func (a *Alias) Notify(p string) {
	if a.upstream == nil {
		return
	}
	a.upstream.Notify(a.mapPathRaw(p))
}

// Shutdown is a no-op: the upstream Base's lifecycle is managed externally.
func (a *Alias) Shutdown() {}

// Visit maps every reported path back to the alias's own namespace
// before calling visitor, so callers never see the upstream's paths.
func (a *Alias) Visit(visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if a.upstream == nil {
		return errUpstreamUnset
	}
	remap := func(entry pathspace.VisitEntry) pathspace.VisitControl {
		entry.Path = a.stripTargetPrefix(entry.Path)
		return visitor(entry)
	}
	return a.upstream.Visit(remap, opts)
}

// PackInsert maps every path onto the target prefix and forwards as a
// single batched call upstream.
func (a *Alias) PackInsert(paths []string, input pathspace.InsertInput) (pathspace.InsertReturn, error) {
	if a.upstream == nil {
		return pathspace.InsertReturn{Errors: []error{errUpstreamUnset}}, errUpstreamUnset
	}
	mapped := make([]string, len(paths))
	for i, p := range paths {
		mapped[i] = a.mapPathRaw(p)
	}
	return a.upstream.PackInsert(mapped, input)
}

// AdoptContextAndPrefix captures the shared context and remembers the
// alias's own mount prefix, used to target retarget notifications.
func (a *Alias) AdoptContextAndPrefix(ctx *wait.Context, prefix string) {
	a.mu.Lock()
	a.ctx = ctx
	a.mountPrefix = prefix
	a.mu.Unlock()
}

// ListChildren lists the children of p by mapping it onto the target
// prefix and delegating to the upstream's ListChildren. No prefix
// stripping is needed: ListChildren returns bare child names, not
// full paths.
func (a *Alias) ListChildren(p string) ([]string, error) {
	if ls, ok := a.upstream.(listChildrenLister); ok {
		return ls.ListChildren(a.mapPathRaw(p))
	}
	return nil, errUpstreamUnset
}

type listChildrenLister interface {
	ListChildren(string) ([]string, error)
}

var errUpstreamUnset = pathspace.NewError(pathspace.InvalidPermissions, "", "alias upstream not set")
