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

package waitfor

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/gridlock/ledger"
)

// A StateSource supplies detection input as one atomic read: the
// ledger snapshot paired with the orders that have been submitted and
// not released. Both halves must come from the same critical section,
// so that a release cannot commit between them and leave the snapshot
// naming a holder the active set no longer contains.
// [orders.Registry.View] implements it.
type StateSource[R, O cmp.Ordered] interface {
	View() (*ledger.Snapshot[R, O], []O)
}

// A Detector runs deadlock detection against a live state source. It
// holds no state of its own; every call reads a fresh view, so the
// verdict may change after any mutation.
type Detector[R, O cmp.Ordered] struct {
	source StateSource[R, O]
}

// NewDetector constructs a Detector reading from the given source.
func NewDetector[R, O cmp.Ordered](source StateSource[R, O]) *Detector[R, O] {
	return &Detector[R, O]{source: source}
}

// Detect builds the wait-for graph from the source's current view and
// searches it for a cycle. An empty active set trivially yields no
// deadlock. The error is non-nil only for an [InconsistentStateError].
func (d *Detector[R, O]) Detect() (*Result[R, O], error) {
	return Detect(d.source.View())
}

// Detect is the snapshot-level entry point behind [Detector.Detect].
// Identical input always produces an identical Result.
func Detect[R, O cmp.Ordered](snap *ledger.Snapshot[R, O], active []O) (*Result[R, O], error) {
	g, err := BuildGraph(snap, active)
	if err != nil {
		return nil, err
	}
	cycle, _ := g.Cycle()
	return &Result[R, O]{graph: g, cycle: cycle}, nil
}

// A Result is a deadlock verdict over one snapshot.
type Result[R, O cmp.Ordered] struct {
	graph *Graph[R, O]
	cycle []O
}

// Deadlocked returns true if a circular wait was found.
func (r *Result[R, O]) Deadlocked() bool {
	return len(r.cycle) > 0
}

// Cycle returns the orders forming the detected cycle, in walk order.
// It returns nil when there is no deadlock.
func (r *Result[R, O]) Cycle() []O {
	return slices.Clone(r.cycle)
}

// Graph returns the wait-for graph the verdict was computed from.
func (r *Result[R, O]) Graph() *Graph[R, O] {
	return r.graph
}

// Explain justifies the detected cycle with one (waiter, resource,
// holder) triple per edge of the closed walk. When several resources
// justify the same edge, the smallest resource id is reported.
func (r *Result[R, O]) Explain() []Edge[R, O] {
	if len(r.cycle) == 0 {
		return nil
	}
	out := make([]Edge[R, O], 0, len(r.cycle))
	for i, waiter := range r.cycle {
		holder := r.cycle[(i+1)%len(r.cycle)]
		for _, e := range r.graph.edges[waiter] {
			if e.Holder == holder {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Victim picks the order to release to break the cycle: the least
// urgent priority wins, ties broken by the largest id. The priority
// callback receives each order in the cycle. Victim returns false when
// the result is not a deadlock.
func Victim[R, O cmp.Ordered](r *Result[R, O], priority func(O) int) (O, bool) {
	if !r.Deadlocked() {
		return *new(O), false
	}
	victim := r.cycle[0]
	worst := priority(victim)
	for _, o := range r.cycle[1:] {
		p := priority(o)
		if p > worst || (p == worst && o > victim) {
			victim, worst = o, p
		}
	}
	return victim, true
}
