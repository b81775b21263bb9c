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

package ledger

import (
	"cmp"
	"slices"
)

// A Snapshot is an immutable view of the ledger state at a single
// commit point. All accessors return copies; a Snapshot never aliases
// the live ledger structures and is safe to share across goroutines.
type Snapshot[R, O cmp.Ordered] struct {
	resources map[R]Resource[R]
	holders   map[R]O
	waiters   map[R][]O
	held      map[O][]R
	waiting   map[O][]R // Derived inverse of waiters, sorted.
}

func emptySnapshot[R, O cmp.Ordered]() *Snapshot[R, O] {
	return &Snapshot[R, O]{
		resources: map[R]Resource[R]{},
		holders:   map[R]O{},
		waiters:   map[R][]O{},
		held:      map[O][]R{},
		waiting:   map[O][]R{},
	}
}

// Resource returns the registration record for a resource id.
func (s *Snapshot[R, O]) Resource(id R) (Resource[R], bool) {
	res, ok := s.resources[id]
	return res, ok
}

// Resources returns all registered resources in ascending id order.
func (s *Snapshot[R, O]) Resources() []Resource[R] {
	out := make([]Resource[R], 0, len(s.resources))
	for _, res := range s.resources {
		out = append(out, res)
	}
	slices.SortFunc(out, func(a, b Resource[R]) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Holder returns the order currently holding the resource, if any.
func (s *Snapshot[R, O]) Holder(resource R) (O, bool) {
	o, ok := s.holders[resource]
	return o, ok
}

// Waiters returns the wait queue for the resource in FIFO order.
func (s *Snapshot[R, O]) Waiters(resource R) []O {
	return slices.Clone(s.waiters[resource])
}

// HeldBy returns the resources held by the order, ascending.
func (s *Snapshot[R, O]) HeldBy(order O) []R {
	out := slices.Clone(s.held[order])
	slices.Sort(out)
	return out
}

// WaitingOn returns the resources the order is queued for, ascending.
func (s *Snapshot[R, O]) WaitingOn(order O) []R {
	return slices.Clone(s.waiting[order])
}
