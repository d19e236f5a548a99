/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lock provides a keyed mutex registry used to serialize build
// executions and publish swaps per (repository, target) so two concurrent
// workers never race on the same workspace or publication slot.
package lock

import "sync"

// Registry hands out per-key mutexes, creating them lazily and reference
// counting so idle keys don't accumulate forever.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it's available. The
// returned func releases it and must be called exactly once.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		e.mu.Unlock()

		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}
}

// TryLock attempts to acquire the mutex for key without blocking. On
// success it returns a release func and ok=true; on failure it returns
// ok=false and the zero func.
func (r *Registry) TryLock(key string) (unlock func(), ok bool) {
	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	if !e.mu.TryLock() {
		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, false
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		e.mu.Unlock()

		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}, true
}
