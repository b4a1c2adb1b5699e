// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package ffi

import (
	"sync"
)

// Handle is an opaque reference to an object in a Registry. Zero is never
// issued.
type Handle uint64

type entry struct {
	value any
	refs  int
	// owned is true until the caller frees the handle.
	owned bool
	deps  []Handle
	// release runs when the last reference goes.
	release func()
}

// Registry is a reference-counted handle table. Objects that borrow another
// object (an Encryptor borrowing its SecretKey) retain its handle, so a key
// outlives everything built from it even after the caller frees the key's
// own handle. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]*entry
	next    Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Handle]*entry),
		next:    1,
	}
}

// put registers v with one caller reference.
func (r *Registry) put(v any, release func()) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(&entry{value: v, release: release})
}

// putRetaining registers v and retains dep until v is released. It fails if
// the caller freed dep in the meantime.
func (r *Registry) putRetaining(v any, dep Handle) (Handle, Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.entries[dep]
	if !ok || !d.owned {
		return 0, handleError(dep, "object")
	}
	d.refs++
	return r.insert(&entry{value: v, deps: []Handle{dep}}), okResult
}

func (r *Registry) insert(e *entry) Handle {
	e.refs, e.owned = 1, true
	h := r.next
	r.next++
	r.entries[h] = e
	return h
}

// get returns the value of a handle the caller still owns.
func (r *Registry) get(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if !ok || !e.owned {
		return nil, false
	}
	return e.value, true
}

// lookup returns the value of h as a T.
func lookup[T any](r *Registry, h Handle) (T, bool) {
	v, ok := r.get(h)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Free drops the caller's reference to h. The object and the objects it
// retains are released once nothing references them.
func (r *Registry) Free(h Handle) Result {
	r.mu.Lock()
	e, ok := r.entries[h]
	if !ok || !e.owned {
		r.mu.Unlock()
		return handleError(h, "object")
	}
	e.owned = false

	var released []func()
	r.unref(h, &released)
	r.mu.Unlock()

	// Destroying key material takes the key's own lock; run it outside ours.
	for _, fn := range released {
		fn()
	}
	return okResult
}

func (r *Registry) unref(h Handle, released *[]func()) {
	e := r.entries[h]
	e.refs--
	if e.refs > 0 {
		return
	}

	delete(r.entries, h)
	if e.release != nil {
		*released = append(*released, e.release)
	}
	for _, d := range e.deps {
		r.unref(d, released)
	}
}

// Len returns the number of live objects, including those kept alive only
// by dependents.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
