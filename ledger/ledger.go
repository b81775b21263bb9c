// Copyright 2025 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

/*
Package ledger tracks ownership of single-holder resources contended
for by concurrently submitted orders.

A [Ledger] is the sole owner of the allocation state: which order holds
each resource and which orders are queued behind the holder. Requests
never block the caller; an order that cannot be granted a resource is
recorded in that resource's FIFO wait queue and the caller continues.
Waiting is pure bookkeeping, which is what allows a detector to inspect
the state and report circular waits.

The Ledger publishes an immutable [Snapshot] after every mutation.
Readers only ever observe fully committed state.
*/
package ledger

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cockroachdb/gridlock/notify"
)

// A Resource is a single-holder entity that orders contend for. Kind is
// a free-form label (e.g. chef, oven, utensil) carried for display and
// export; it has no effect on allocation.
type Resource[R cmp.Ordered] struct {
	ID   R
	Kind string
}

// A Grant records a resource being handed to a new holder as a
// consequence of a release.
type Grant[R, O cmp.Ordered] struct {
	Resource R
	Order    O
}

// Disposition is returned by [Ledger.Request].
type Disposition int

const (
	// Granted means the requesting order now holds the resource. It
	// is also returned when the order already held the resource.
	Granted Disposition = iota
	// Queued means the resource is held by another order and the
	// request was appended to (or already present in) the resource's
	// wait queue.
	Queued
)

func (d Disposition) String() string {
	switch d {
	case Granted:
		return "granted"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// A Ledger owns the authoritative resource-to-holder mapping and the
// per-resource wait queues. Request and Release are the only mutators;
// each applies its full effect atomically with respect to readers.
//
// A Ledger is internally synchronized and is safe for concurrent use.
// A Ledger should not be copied after it has been created.
type Ledger[R, O cmp.Ordered] struct {
	events *Events[R, O] // Injectable callbacks.

	mu struct {
		sync.RWMutex
		resources map[R]Resource[R]
		holders   map[R]O
		waiters   map[R][]O // FIFO per resource.
		held      map[O][]R // Reverse index, in grant order.
	}

	snapshot notify.Var[*Snapshot[R, O]]
}

// New constructs an empty [Ledger].
func New[R, O cmp.Ordered]() *Ledger[R, O] {
	l := &Ledger[R, O]{}
	l.mu.resources = make(map[R]Resource[R])
	l.mu.holders = make(map[R]O)
	l.mu.waiters = make(map[R][]O)
	l.mu.held = make(map[O][]R)
	l.snapshot.Set(emptySnapshot[R, O]())
	return l
}

// SetEvents allows observation callbacks to be injected into the
// Ledger. This method should be called before any other use.
func (l *Ledger[R, O]) SetEvents(events *Events[R, O]) {
	l.events = events
}

// Register adds a resource to the ledger. It returns a
// [DuplicateResourceError] if the id has already been registered.
func (l *Ledger[R, O]) Register(res Resource[R]) error {
	l.mu.Lock()
	if _, dup := l.mu.resources[res.ID]; dup {
		l.mu.Unlock()
		return &DuplicateResourceError[R]{ID: res.ID}
	}
	l.mu.resources[res.ID] = res
	l.publishLocked()
	l.mu.Unlock()

	l.events.doRegister(res)
	return nil
}

// Request asks for a resource on behalf of an order. If the resource is
// unheld, the order becomes its holder and Granted is returned. If it
// is held by a different order, the order is appended to the resource's
// wait queue and Queued is returned. Re-requesting a resource that the
// order already holds, or is already queued for, is a no-op.
//
// Request returns an [UnknownResourceError] if the resource id has not
// been registered; the call leaves no trace in that case.
func (l *Ledger[R, O]) Request(order O, resource R) (Disposition, error) {
	l.mu.Lock()
	if _, ok := l.mu.resources[resource]; !ok {
		l.mu.Unlock()
		return 0, &UnknownResourceError[R]{ID: resource}
	}

	holder, taken := l.mu.holders[resource]
	if !taken {
		l.mu.holders[resource] = order
		l.mu.held[order] = append(l.mu.held[order], resource)
		l.publishLocked()
		l.mu.Unlock()

		l.events.doGrant(resource, order)
		return Granted, nil
	}

	if holder == order {
		// Already holding; nothing to record.
		l.mu.Unlock()
		return Granted, nil
	}

	if slices.Contains(l.mu.waiters[resource], order) {
		// Already queued; keep the original position.
		l.mu.Unlock()
		return Queued, nil
	}

	l.mu.waiters[resource] = append(l.mu.waiters[resource], order)
	l.publishLocked()
	l.mu.Unlock()

	l.events.doQueue(resource, order)
	return Queued, nil
}

// Release frees every resource held by the order and removes the order
// from every wait queue. Each freed resource with a non-empty wait
// queue is immediately granted to the head waiter; the forwarded grants
// are returned in ascending resource order. A waiter that receives a
// forwarded grant remains queued for any other resources it wants.
//
// Releasing an order that holds nothing and waits on nothing is a
// no-op.
func (l *Ledger[R, O]) Release(order O) []Grant[R, O] {
	l.mu.Lock()

	freed := slices.Clone(l.mu.held[order])
	slices.Sort(freed)

	var forwarded []Grant[R, O]
	for _, r := range freed {
		delete(l.mu.holders, r)
		queue := l.mu.waiters[r]
		if len(queue) == 0 {
			continue
		}
		next := queue[0]
		if len(queue) == 1 {
			delete(l.mu.waiters, r)
		} else {
			l.mu.waiters[r] = slices.Clone(queue[1:])
		}
		l.mu.holders[r] = next
		l.mu.held[next] = append(l.mu.held[next], r)
		forwarded = append(forwarded, Grant[R, O]{Resource: r, Order: next})
	}
	delete(l.mu.held, order)

	// Unwind any waits the released order still had.
	dequeued := false
	for r, queue := range l.mu.waiters {
		idx := slices.Index(queue, order)
		if idx < 0 {
			continue
		}
		queue = slices.Delete(slices.Clone(queue), idx, idx+1)
		if len(queue) == 0 {
			delete(l.mu.waiters, r)
		} else {
			l.mu.waiters[r] = queue
		}
		dequeued = true
	}

	if len(freed) > 0 || dequeued {
		l.publishLocked()
	}
	l.mu.Unlock()

	if len(freed) > 0 || dequeued {
		l.events.doRelease(order, freed)
	}
	for _, g := range forwarded {
		l.events.doGrant(g.Resource, g.Order)
	}
	return forwarded
}

// Lookup returns the registration record for a resource id.
func (l *Ledger[R, O]) Lookup(resource R) (Resource[R], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.mu.resources[resource]
	return res, ok
}

// Resources returns all registered resources in ascending id order.
func (l *Ledger[R, O]) Resources() []Resource[R] {
	return l.Snapshot().Resources()
}

// Snapshot returns the most recently committed state. The returned
// value is immutable and detached from the live ledger.
func (l *Ledger[R, O]) Snapshot() *Snapshot[R, O] {
	return l.snapshot.Peek()
}

// Watch returns the current snapshot and a channel that will be closed
// when the next mutation commits. Presentation layers can poll on it
// instead of busy-reading.
func (l *Ledger[R, O]) Watch() (*Snapshot[R, O], <-chan struct{}) {
	return l.snapshot.Get()
}

// publishLocked swaps in a new immutable snapshot. Callers must hold
// the write lock.
func (l *Ledger[R, O]) publishLocked() {
	s := &Snapshot[R, O]{
		resources: make(map[R]Resource[R], len(l.mu.resources)),
		holders:   make(map[R]O, len(l.mu.holders)),
		waiters:   make(map[R][]O, len(l.mu.waiters)),
		held:      make(map[O][]R, len(l.mu.held)),
		waiting:   make(map[O][]R),
	}
	for id, res := range l.mu.resources {
		s.resources[id] = res
	}
	for r, o := range l.mu.holders {
		s.holders[r] = o
	}
	for r, queue := range l.mu.waiters {
		s.waiters[r] = slices.Clone(queue)
		for _, o := range queue {
			s.waiting[o] = append(s.waiting[o], r)
		}
	}
	for o, rs := range l.mu.held {
		s.held[o] = slices.Clone(rs)
	}
	for _, rs := range s.waiting {
		slices.Sort(rs)
	}
	l.snapshot.Set(s)
}
