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

// Package orders tracks the orders contending for ledger resources:
// their identity, required resource lists, and priorities. An order's
// status is always derived from the current ledger snapshot rather
// than stored, so it cannot drift from the allocation state.
package orders

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/gridlock/ledger"
)

// DefaultPriority is assigned to orders submitted without an explicit
// priority. Lower numbers are more urgent.
const DefaultPriority = 5

// An Order is a request for a fixed list of resources. The resource
// list is immutable once submitted; only the derived status and the
// priority change afterwards.
type Order[R, O cmp.Ordered] struct {
	ID          O
	Resources   []R // In acquisition order, deduplicated.
	Priority    int
	SubmittedAt time.Time
}

// An Info pairs an order with its derived status, for display.
type Info[R, O cmp.Ordered] struct {
	Order  Order[R, O]
	Status Status
}

// A SubmitOption adjusts order submission.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	priority int
	deferred bool
}

// WithPriority sets the order's priority. Lower is more urgent.
func WithPriority(priority int) SubmitOption {
	return func(c *submitConfig) { c.priority = priority }
}

// WithDeferredRequests records the order without forwarding any
// resource requests; the order stays Pending until the caller issues
// them through [Registry.Request]. This is how a driver interleaves
// acquisition attempts across orders.
func WithDeferredRequests() SubmitOption {
	return func(c *submitConfig) { c.deferred = true }
}

// A Registry owns order metadata and forwards resource requests to the
// ledger. It is internally synchronized and safe for concurrent use.
type Registry[R, O cmp.Ordered] struct {
	ledger *ledger.Ledger[R, O]

	mu struct {
		sync.RWMutex
		active   map[O]*Order[R, O]
		released map[O]Order[R, O]
	}
}

// NewRegistry constructs a Registry backed by the given ledger.
func NewRegistry[R, O cmp.Ordered](l *ledger.Ledger[R, O]) *Registry[R, O] {
	r := &Registry[R, O]{ledger: l}
	r.mu.active = make(map[O]*Order[R, O])
	r.mu.released = make(map[O]Order[R, O])
	return r
}

// Submit records a new order and forwards one request per resource, in
// list order. Duplicate entries in the list are dropped, keeping the
// first position. Validation is all-or-nothing: every resource id is
// checked against the ledger before the first request is forwarded, so
// a failed Submit leaves no state behind.
//
// Submit fails with a [DuplicateOrderError] if the id is in use
// (including released ids), an [EmptyRequestError] if the list is
// empty, or a [ledger.UnknownResourceError] naming the first
// unregistered resource.
func (r *Registry[R, O]) Submit(id O, resources []R, opts ...SubmitOption) error {
	cfg := submitConfig{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.mu.active[id]; dup {
		return &DuplicateOrderError[O]{ID: id}
	}
	if _, dup := r.mu.released[id]; dup {
		return &DuplicateOrderError[O]{ID: id}
	}

	resources = dedup(resources)
	if len(resources) == 0 {
		return &EmptyRequestError[O]{ID: id}
	}
	for _, res := range resources {
		if _, ok := r.ledger.Lookup(res); !ok {
			return &ledger.UnknownResourceError[R]{ID: res}
		}
	}

	order := &Order[R, O]{
		ID:          id,
		Resources:   resources,
		Priority:    cfg.priority,
		SubmittedAt: time.Now(),
	}
	r.mu.active[id] = order
	if cfg.deferred {
		return nil
	}

	// Resources are never unregistered, so the requests validated
	// above cannot fail.
	for _, res := range resources {
		if _, err := r.ledger.Request(id, res); err != nil {
			return err
		}
	}
	return nil
}

// Request forwards a single acquisition attempt for an order submitted
// with [WithDeferredRequests]. The resource must appear in the order's
// list; anything else fails with a [NotRequestedError]. Re-requesting
// a resource the order already holds or waits for is a no-op, as in
// [ledger.Ledger.Request].
func (r *Registry[R, O]) Request(id O, resource R) (ledger.Disposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.mu.active[id]
	if !ok {
		return 0, &UnknownOrderError[O]{ID: id}
	}
	if !slices.Contains(order.Resources, resource) {
		return 0, &NotRequestedError[R, O]{Order: id, Resource: resource}
	}
	return r.ledger.Request(id, resource)
}

// Status derives the order's status from the current ledger snapshot.
func (r *Registry[R, O]) Status(id O) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked(id, r.ledger.Snapshot())
}

func (r *Registry[R, O]) statusLocked(id O, snap *ledger.Snapshot[R, O]) (Status, error) {
	if _, ok := r.mu.released[id]; ok {
		return Released, nil
	}
	order, ok := r.mu.active[id]
	if !ok {
		return 0, &UnknownOrderError[O]{ID: id}
	}

	held := snap.HeldBy(id)
	switch {
	case len(held) == len(order.Resources):
		return FullyAllocated, nil
	case len(held) > 0:
		return PartiallyAllocated, nil
	case len(snap.WaitingOn(id)) > 0:
		return Waiting, nil
	default:
		return Pending, nil
	}
}

// Release frees everything the order holds, unwinds its waits, and
// marks it Released. The forwarded grants reported by the ledger are
// returned. Releasing an already-released order is a no-op returning
// ok; an id that was never submitted fails with [UnknownOrderError].
func (r *Registry[R, O]) Release(id O) ([]ledger.Grant[R, O], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.mu.released[id]; done {
		return nil, nil
	}
	order, ok := r.mu.active[id]
	if !ok {
		return nil, &UnknownOrderError[O]{ID: id}
	}

	grants := r.ledger.Release(id)
	delete(r.mu.active, id)
	r.mu.released[id] = *order
	return grants, nil
}

// Reschedule changes the order's priority. Rescheduling a released
// order is a no-op.
func (r *Registry[R, O]) Reschedule(id O, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.mu.released[id]; done {
		return nil
	}
	order, ok := r.mu.active[id]
	if !ok {
		return &UnknownOrderError[O]{ID: id}
	}
	order.Priority = priority
	return nil
}

// Get returns a copy of the order and its derived status.
func (r *Registry[R, O]) Get(id O) (Order[R, O], Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, err := r.statusLocked(id, r.ledger.Snapshot())
	if err != nil {
		return Order[R, O]{}, 0, err
	}
	if status == Released {
		order := r.mu.released[id]
		order.Resources = slices.Clone(order.Resources)
		return order, Released, nil
	}
	order := *r.mu.active[id]
	order.Resources = slices.Clone(order.Resources)
	return order, status, nil
}

// Active returns the ids of all non-released orders, ascending. This
// is the node set the deadlock detector operates over.
func (r *Registry[R, O]) Active() []O {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked()
}

// View returns the ledger snapshot paired with the active-order ids as
// one atomic read. Every registry operation mutates the ledger while
// holding the write lock, so the pair cannot straddle a release. This
// is the input [waitfor.Detector] consumes.
func (r *Registry[R, O]) View() (*ledger.Snapshot[R, O], []O) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.Snapshot(), r.activeLocked()
}

func (r *Registry[R, O]) activeLocked() []O {
	out := make([]O, 0, len(r.mu.active))
	for id := range r.mu.active {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// List enumerates every known order with its derived status, in
// ascending id order. Released orders are included for display.
func (r *Registry[R, O]) List() []Info[R, O] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.ledger.Snapshot()
	out := make([]Info[R, O], 0, len(r.mu.active)+len(r.mu.released))
	for id, order := range r.mu.active {
		status, _ := r.statusLocked(id, snap)
		copied := *order
		copied.Resources = slices.Clone(order.Resources)
		out = append(out, Info[R, O]{Order: copied, Status: status})
	}
	for _, order := range r.mu.released {
		order.Resources = slices.Clone(order.Resources)
		out = append(out, Info[R, O]{Order: order, Status: Released})
	}
	slices.SortFunc(out, func(a, b Info[R, O]) int { return cmp.Compare(a.Order.ID, b.Order.ID) })
	return out
}

// Make a copy of the resource list and deduplicate it, keeping the
// first occurrence's position.
func dedup[R comparable](resources []R) []R {
	resources = append([]R(nil), resources...)
	seen := make(map[R]struct{}, len(resources))
	idx := 0
	for _, res := range resources {
		if _, dup := seen[res]; dup {
			continue
		}
		seen[res] = struct{}{}

		resources[idx] = res
		idx++
	}
	return resources[:idx]
}
