// SPDX-License-Identifier: MIT

package tree

import (
	"sync"
	"sync/atomic"
)

// pool is a type-safe wrapper around sync.Pool specialized for *node
// instances, grounded on gaissmai/bart's pool.go: it tracks allocation
// and live-use counters alongside the usual Get/Put recycling.
type pool struct {
	sync.Pool

	totalAllocated atomic.Int64
	currentLive    atomic.Int64
}

func newPool() *pool {
	p := &pool{}
	p.New = func() any {
		p.totalAllocated.Add(1)
		return new(node)
	}
	return p
}

// Get retrieves a *node from the pool, or creates a new one if needed.
func (p *pool) Get() *node {
	if p == nil {
		return new(node)
	}
	p.currentLive.Add(1)
	return p.Pool.Get().(*node)
}

// Put resets and returns a *node to the pool.
func (p *pool) Put(n *node) {
	if p == nil {
		return
	}
	p.currentLive.Add(-1)
	n.reset()
	p.Pool.Put(n)
}
