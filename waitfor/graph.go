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
Package waitfor detects deadlocks among orders tracked by a ledger.

The package builds a wait-for graph from a [ledger.Snapshot] and the
registry's active-order set: one node per active order, with an edge
from A to B whenever A is queued for a resource that B holds. A cycle
in that graph is a deadlock. The graph is a throwaway view, rebuilt on
every detection call; it is never the source of truth.

Node and edge traversal is in ascending id order, so identical input
always produces an identical verdict.
*/
package waitfor

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cockroachdb/gridlock/ledger"
)

// An Edge justifies one wait-for relationship: Waiter is queued for
// Resource, which Holder currently owns.
type Edge[R, O cmp.Ordered] struct {
	Waiter   O
	Resource R
	Holder   O
}

func (e Edge[R, O]) String() string {
	return fmt.Sprintf("%v waits for %v held by %v", e.Waiter, e.Resource, e.Holder)
}

// A Graph is the wait-for relation derived from one ledger snapshot.
// It is immutable once built.
type Graph[R, O cmp.Ordered] struct {
	nodes []O                // Ascending.
	out   map[O][]O          // Distinct neighbors, ascending.
	edges map[O][]Edge[R, O] // Justifying edges, ascending by resource.
}

// BuildGraph derives the wait-for graph for the given active orders.
//
// BuildGraph fails with an [InconsistentStateError] if the snapshot
// violates a ledger invariant: a wait queue naming an unregistered
// resource, a non-empty queue on an unheld resource, a self-wait, or a
// holder or waiter outside the active set. These indicate a bug in the
// state keeper, not a normal runtime condition.
func BuildGraph[R, O cmp.Ordered](snap *ledger.Snapshot[R, O], active []O) (*Graph[R, O], error) {
	nodes := slices.Clone(active)
	slices.Sort(nodes)
	nodes = slices.Compact(nodes)

	activeSet := make(map[O]struct{}, len(nodes))
	for _, o := range nodes {
		activeSet[o] = struct{}{}
	}

	// Every holder and every queued waiter must be an active order.
	for _, res := range snap.Resources() {
		if holder, ok := snap.Holder(res.ID); ok {
			if _, isActive := activeSet[holder]; !isActive {
				return nil, &InconsistentStateError{
					Mapping: "allocation",
					Detail:  fmt.Sprintf("resource %v held by inactive order %v", res.ID, holder),
				}
			}
		}
		for _, waiter := range snap.Waiters(res.ID) {
			if _, isActive := activeSet[waiter]; !isActive {
				return nil, &InconsistentStateError{
					Mapping: "wait",
					Detail:  fmt.Sprintf("resource %v queue references inactive order %v", res.ID, waiter),
				}
			}
		}
	}

	g := &Graph[R, O]{
		nodes: nodes,
		out:   make(map[O][]O),
		edges: make(map[O][]Edge[R, O]),
	}
	for _, o := range nodes {
		for _, r := range snap.WaitingOn(o) {
			if _, registered := snap.Resource(r); !registered {
				return nil, &InconsistentStateError{
					Mapping: "wait",
					Detail:  fmt.Sprintf("queue references unregistered resource %v", r),
				}
			}
			holder, held := snap.Holder(r)
			if !held {
				return nil, &InconsistentStateError{
					Mapping: "wait",
					Detail:  fmt.Sprintf("order %v queued for unheld resource %v", o, r),
				}
			}
			if holder == o {
				return nil, &InconsistentStateError{
					Mapping: "wait",
					Detail:  fmt.Sprintf("order %v waits on resource %v it already holds", o, r),
				}
			}
			if _, isActive := activeSet[holder]; !isActive {
				return nil, &InconsistentStateError{
					Mapping: "allocation",
					Detail:  fmt.Sprintf("resource %v held by inactive order %v", r, holder),
				}
			}
			g.edges[o] = append(g.edges[o], Edge[R, O]{Waiter: o, Resource: r, Holder: holder})
			if !slices.Contains(g.out[o], holder) {
				g.out[o] = append(g.out[o], holder)
			}
		}
		slices.Sort(g.out[o])
	}
	return g, nil
}

// Nodes returns the active orders, ascending.
func (g *Graph[R, O]) Nodes() []O {
	return slices.Clone(g.nodes)
}

// Edges returns every wait-for edge, ordered by waiter then resource.
func (g *Graph[R, O]) Edges() []Edge[R, O] {
	var out []Edge[R, O]
	for _, o := range g.nodes {
		out = append(out, g.edges[o]...)
	}
	return out
}

// Cycle runs a depth-first search over the graph and returns one
// concrete cycle: the minimal closed walk found on the recursion stack
// when a back edge is first encountered. The ok result is false for
// acyclic graphs.
func (g *Graph[R, O]) Cycle() (cycle []O, ok bool) {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[O]int, len(g.nodes))

	var path []O
	var visit func(o O) bool
	visit = func(o O) bool {
		state[o] = onStack
		path = append(path, o)
		for _, next := range g.out[o] {
			switch state[next] {
			case unvisited:
				if visit(next) {
					return true
				}
			case onStack:
				// Back edge; the cycle is the path suffix from the
				// revisited node.
				start := slices.Index(path, next)
				cycle = slices.Clone(path[start:])
				return true
			}
		}
		state[o] = done
		path = path[:len(path)-1]
		return false
	}

	for _, o := range g.nodes {
		if state[o] == unvisited && visit(o) {
			return cycle, true
		}
	}
	return nil, false
}
