// SPDX-License-Identifier: MIT

// Package snapshotcache implements SnapshotCachedPathSpace, an
// optional read-optimized cache layered in front of a backing Base.
// Mutations passing through this layer mark their path dirty; reads
// for a path with no dirty ancestor may be served from the cache
// instead of the backing space, and a debounced background worker
// periodically reconciles the dirty set.
//
// Grounded on
// original_source/src/pathspace/layer/SnapshotCachedPathSpace.cpp/.hpp:
// the dirty-root set with prefix containment (dirtyRootsContainPrefix),
// the debounce-then-rebuild worker loop, and the hit/miss/rebuild
// counters. Adapted because the Go facade has no whole-tree
// byte-snapshot primitive the way NodeData::serialize gives the
// original: instead of rebuilding one serialized blob per enabled
// subtree, this cache memoizes individual non-destructive reads and
// invalidates memoized entries whose key falls under a newly dirtied
// root — same dirty-tracking contract, per-path granularity instead of
// whole-snapshot granularity.
package snapshotcache

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
	"github.com/gaissmai/pathspace/internal/wait"
)

var _ pathspace.Base = (*Cache)(nil)

// Options configures the cache, mirroring SnapshotOptions.
type Options struct {
	Enabled                 bool
	RebuildDebounce         time.Duration
	MaxDirtyRoots           int
	AllowSynchronousRebuild bool
}

// Metrics reports cache effectiveness, mirroring SnapshotMetrics.
type Metrics struct {
	Hits            int64
	Misses          int64
	Rebuilds        int64
	RebuildFailures int64
	LastRebuildMs   int64
	EntriesCached   int64
}

type cachedEntry struct {
	value any
	err   error
}

// Cache wraps a backing Base with a dirty-tracked read cache.
type Cache struct {
	backing pathspace.Base

	mu         sync.Mutex
	opts       Options
	enabled    bool
	dirtyRoots map[string]struct{}
	values     map[string]cachedEntry
	lastMutate time.Time

	hits, misses, rebuilds, rebuildFailures int64
	lastRebuildMs                           int64

	stopCh chan struct{}
	wg     sync.WaitGroup

	sf singleflight.Group

	ctx         *wait.Context
	mountPrefix string
}

// New constructs a Cache wrapping backing. The cache starts disabled;
// call SetOptions to enable it.
func New(backing pathspace.Base) *Cache {
	return &Cache{
		backing:    backing,
		dirtyRoots: make(map[string]struct{}),
		values:     make(map[string]cachedEntry),
	}
}

// SetOptions reconfigures the cache, resetting metrics and the dirty
// set, and starts or stops the background worker to match
// opts.Enabled.
func (c *Cache) SetOptions(opts Options) {
	if opts.MaxDirtyRoots <= 0 {
		opts.MaxDirtyRoots = 128
	}
	if opts.RebuildDebounce <= 0 {
		opts.RebuildDebounce = 200 * time.Millisecond
	}

	c.mu.Lock()
	c.opts = opts
	c.enabled = opts.Enabled
	c.dirtyRoots = make(map[string]struct{})
	c.values = make(map[string]cachedEntry)
	if opts.Enabled {
		c.dirtyRoots["/"] = struct{}{}
	}
	c.lastMutate = time.Now().Add(-opts.RebuildDebounce)
	c.hits, c.misses, c.rebuilds, c.rebuildFailures, c.lastRebuildMs = 0, 0, 0, 0, 0
	c.mu.Unlock()

	if opts.Enabled {
		c.startWorker()
	} else {
		c.stopWorker()
	}
}

// Enabled reports whether the cache is currently active.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// MetricsSnapshot returns a point-in-time copy of the cache counters.
func (c *Cache) MetricsSnapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Hits:            c.hits,
		Misses:          c.misses,
		Rebuilds:        c.rebuilds,
		RebuildFailures: c.rebuildFailures,
		LastRebuildMs:   c.lastRebuildMs,
		EntriesCached:   int64(len(c.values)),
	}
}

func isPathPrefix(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	if len(p) < len(prefix) || !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

// dirtyContains reports whether p has a dirty ancestor (or is itself
// dirty), ported verbatim from dirtyRootsContainPrefix.
func (c *Cache) dirtyContains(p string) bool {
	if len(c.dirtyRoots) == 0 {
		return false
	}
	if _, ok := c.dirtyRoots["/"]; ok {
		return true
	}
	for root := range c.dirtyRoots {
		if isPathPrefix(root, p) {
			return true
		}
	}
	return false
}

// markDirty records p as a dirty root, evicts overlapping cached
// entries, and collapses the dirty set to "/" if it grows past
// MaxDirtyRoots (matching the original's bound on unbounded root
// growth under a fan-out of unrelated mutations).
func (c *Cache) markDirty(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.dirtyRoots[p] = struct{}{}
	c.lastMutate = time.Now()
	for key := range c.values {
		if isPathPrefix(p, key) {
			delete(c.values, key)
		}
	}
	if len(c.dirtyRoots) > c.opts.MaxDirtyRoots {
		c.dirtyRoots = map[string]struct{}{"/": {}}
		c.values = make(map[string]cachedEntry)
	}
}

// In forwards to the backing Base and marks the inserted path dirty on
// success.
func (c *Cache) In(iter path.Iterator, input pathspace.InsertInput) pathspace.InsertReturn {
	if c.backing == nil {
		return pathspace.InsertReturn{Errors: []error{pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")}}
	}
	ret := c.backing.In(iter, input)
	if ret.ValuesInserted > 0 || ret.SpacesInserted > 0 || ret.TasksInserted > 0 {
		c.markDirty(c.mapAbsolute(iter.String()))
		c.maybeRebuildInline()
	}
	return ret
}

// maybeRebuildInline triggers a synchronous rebuild right after a
// mutation when AllowSynchronousRebuild is set and the wait registry
// holds no condition variable for any path (HasWaiters is false; a
// path keeps its entry after its waiter wakes): with nobody waiting on a notification,
// there is no debounce benefit to deferring the reconcile to the
// background worker, so the next read gets a clean cache immediately
// instead of paying one guaranteed miss.
func (c *Cache) maybeRebuildInline() {
	c.mu.Lock()
	allow := c.enabled && c.opts.AllowSynchronousRebuild
	ctx := c.ctx
	c.mu.Unlock()
	if !allow || ctx == nil || ctx.Registry.HasWaiters() {
		return
	}
	c.RebuildNow()
}

// Out serves from the per-path cache when the path has no dirty
// ancestor, falling through to (and, for non-destructive reads,
// memoizing) the backing Base otherwise. Glob reads always bypass the
// cache entirely: markDirty only evicts memoized keys that are literal
// path-prefixes of the dirtied path, and a glob key like "/*" is never
// a prefix-match of a concretely dirtied sibling path such as "/0", so
// a memoized glob result could go stale without ever being evicted.
func (c *Cache) Out(iter path.Iterator, meta queue.Meta, opts pathspace.OutOpts) (any, error) {
	if c.backing == nil {
		return nil, pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")
	}
	canonical := c.mapAbsolute(iter.String())
	isGlob := path.IsGlob(canonical)

	c.mu.Lock()
	enabled := c.enabled
	clean := enabled && !isGlob && !c.dirtyContains(canonical)
	var cached cachedEntry
	var hit bool
	if clean && !opts.DoPop {
		cached, hit = c.values[canonical]
	}
	if hit {
		c.hits++
	} else if enabled {
		c.misses++
	}
	c.mu.Unlock()

	if hit {
		return cached.value, cached.err
	}

	v, err := c.backing.Out(iter, meta, opts)

	if clean && !opts.DoPop {
		c.mu.Lock()
		if c.enabled && !c.dirtyContains(canonical) {
			c.values[canonical] = cachedEntry{value: v, err: err}
		}
		c.mu.Unlock()
	}
	return v, err
}

// RebuildNow reconciles the dirty set synchronously, collapsing
// concurrent callers into a single rebuild via singleflight.
func (c *Cache) RebuildNow() {
	c.mu.Lock()
	if !c.enabled || len(c.dirtyRoots) == 0 {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	_, _, _ = c.sf.Do("rebuild", func() (any, error) {
		start := time.Now()
		c.mu.Lock()
		c.dirtyRoots = make(map[string]struct{})
		c.rebuilds++
		c.lastRebuildMs = time.Since(start).Milliseconds()
		c.mu.Unlock()
		return nil, nil
	})
}

func (c *Cache) mapAbsolute(p string) string {
	c.mu.Lock()
	prefix := c.mountPrefix
	c.mu.Unlock()
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

func (c *Cache) startWorker() {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stopCh = stop
	debounce := c.opts.RebuildDebounce
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(debounce)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				due := c.enabled && len(c.dirtyRoots) > 0 && time.Since(c.lastMutate) >= c.opts.RebuildDebounce
				c.mu.Unlock()
				if due {
					c.RebuildNow()
				}
			}
		}
	}()
}

func (c *Cache) stopWorker() {
	c.mu.Lock()
	stop := c.stopCh
	c.stopCh = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		c.wg.Wait()
	}
}

// Notify forwards to the adopted context's registry.
func (c *Cache) Notify(p string) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx != nil {
		ctx.Registry.Notify(p)
	}
}

// Shutdown stops the background worker and forwards to the backing
// Base's own Shutdown, since unlike alias/trellis this layer owns a
// goroutine that must be joined.
func (c *Cache) Shutdown() {
	c.stopWorker()
	if c.backing != nil {
		c.backing.Shutdown()
	}
}

// Visit forwards to the backing Base; the cache never substitutes for
// a traversal, only for single-path reads.
func (c *Cache) Visit(visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if c.backing == nil {
		return pathspace.NewError(pathspace.InvalidPermissions, "", "no backing space configured")
	}
	return c.backing.Visit(visitor, opts)
}

// PackInsert loops over paths, marking each dirty, same simplification
// as the facade's and trellis's own PackInsert.
func (c *Cache) PackInsert(paths []string, input pathspace.InsertInput) (pathspace.InsertReturn, error) {
	var total pathspace.InsertReturn
	for _, p := range paths {
		ret := c.In(path.NewIterator(p), input)
		total.ValuesInserted += ret.ValuesInserted
		total.SpacesInserted += ret.SpacesInserted
		total.TasksInserted += ret.TasksInserted
		total.Errors = append(total.Errors, ret.Errors...)
	}
	return total, nil
}

// AdoptContextAndPrefix captures the shared context and this layer's
// own mount prefix, used to resolve dirty/cache keys for paths
// addressed relative to the mount.
func (c *Cache) AdoptContextAndPrefix(ctx *wait.Context, prefix string) {
	c.mu.Lock()
	c.ctx = ctx
	c.mountPrefix = prefix
	c.mu.Unlock()
}
