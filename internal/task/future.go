// SPDX-License-Identifier: MIT

package task

import (
	"sync"
	"time"
)

// sharedState is the type-erased equivalent of ISharedState/SharedState<T>:
// a single value slot, fulfilled at most once ("first set wins"), with
// readiness queries and blocking/timed waits.
type sharedState struct {
	mu    sync.Mutex
	cond  *sync.Cond
	ready bool
	value any
	err   error
}

func newSharedState() *sharedState {
	s := &sharedState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *sharedState) setValue(v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return false
	}
	s.value = v
	s.ready = true
	s.cond.Broadcast()
	return true
}

func (s *sharedState) setError(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return false
	}
	s.err = err
	s.ready = true
	s.cond.Broadcast()
	return true
}

func (s *sharedState) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *sharedState) wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.ready {
		s.cond.Wait()
	}
}

// waitUntil blocks until ready or deadline, returning ready's value at
// return, mirroring ISharedState::wait_until's steady-clock semantics
// (Go's monotonic time.Time already behaves like a steady clock).
func (s *sharedState) waitUntil(deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return s.isReady()
	}

	woke := make(chan struct{})
	timer := time.AfterFunc(remaining, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	go func() {
		s.mu.Lock()
		for !s.ready && time.Now().Before(deadline) {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(woke)
	}()
	<-woke
	return s.isReady()
}

func (s *sharedState) get() (any, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, nil, false
	}
	return s.value, s.err, true
}

// FutureAny is a type-erased handle to a Task's eventual result,
// grounded on original_source's FutureAny over ISharedState.
type FutureAny struct {
	state *sharedState
}

// Valid reports whether the future is bound to a shared state.
func (f *FutureAny) Valid() bool { return f != nil && f.state != nil }

// Ready reports whether the result has been set.
func (f *FutureAny) Ready() bool { return f.Valid() && f.state.isReady() }

// Wait blocks until the result is available.
func (f *FutureAny) Wait() {
	if f.Valid() {
		f.state.wait()
	}
}

// WaitUntil blocks until deadline or readiness, returning readiness at return.
func (f *FutureAny) WaitUntil(deadline time.Time) bool {
	if !f.Valid() {
		return true
	}
	return f.state.waitUntil(deadline)
}

// TryGet returns the result without blocking; ok is false if not ready.
func (f *FutureAny) TryGet() (value any, err error, ok bool) {
	if !f.Valid() {
		return nil, nil, false
	}
	return f.state.get()
}

// Get blocks until ready, then returns the result.
func (f *FutureAny) Get() (value any, err error) {
	if !f.Valid() {
		return nil, nil
	}
	f.state.wait()
	v, e, _ := f.state.get()
	return v, e
}

func (f *FutureAny) setValue(v any) bool { return f.state.setValue(v) }
func (f *FutureAny) setError(err error) bool { return f.state.setError(err) }

// PromiseT is the producer-side handle for a typed result of T,
// grounded on original_source's PromiseT<T>.
type PromiseT[T any] struct {
	state *sharedState
}

// NewPromiseT constructs an unfulfilled PromiseT[T].
func NewPromiseT[T any]() PromiseT[T] {
	return PromiseT[T]{state: newSharedState()}
}

// Future returns the typed FutureT bound to this promise.
func (p PromiseT[T]) Future() FutureT[T] { return FutureT[T]{state: p.state} }

// SetValue fulfills the promise; returns false if already fulfilled.
func (p PromiseT[T]) SetValue(v T) bool { return p.state.setValue(v) }

// FutureT is the typed consumer-side handle to a PromiseT[T]'s result,
// grounded on original_source's FutureT<T>.
type FutureT[T any] struct {
	state *sharedState
}

// Valid reports whether the future is bound to a shared state.
func (f FutureT[T]) Valid() bool { return f.state != nil }

// Ready reports whether the result has been set.
func (f FutureT[T]) Ready() bool { return f.Valid() && f.state.isReady() }

// Wait blocks until the result is available.
func (f FutureT[T]) Wait() {
	if f.Valid() {
		f.state.wait()
	}
}

// TryGet returns the result without blocking; ok is false if not ready.
func (f FutureT[T]) TryGet() (v T, ok bool) {
	if !f.Valid() {
		return v, false
	}
	raw, _, ready := f.state.get()
	if !ready {
		return v, false
	}
	v, _ = raw.(T)
	return v, true
}

// Get blocks until ready, then returns the typed result.
func (f FutureT[T]) Get() T {
	var zero T
	if !f.Valid() {
		return zero
	}
	f.state.wait()
	raw, _, _ := f.state.get()
	v, _ := raw.(T)
	return v
}

// ToAny returns a type-erased view of this typed future, sharing the
// same underlying state (original_source's FutureAny(FutureT<T> const&)
// bridge constructor).
func (f FutureT[T]) ToAny() *FutureAny { return &FutureAny{state: f.state} }
