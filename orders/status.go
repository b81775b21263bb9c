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

package orders

// Status describes an order's progress as derived from ledger state.
// It is computed on demand and never stored.
type Status int

const (
	// Pending means no request has been issued for the order yet.
	Pending Status = iota
	// Waiting means the order holds nothing and is queued for at
	// least one resource.
	Waiting
	// PartiallyAllocated means the order holds some, but not all, of
	// its required resources.
	PartiallyAllocated
	// FullyAllocated means the order holds every resource it asked
	// for.
	FullyAllocated
	// Released is terminal; the order has freed its resources and is
	// excluded from detection.
	Released
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Waiting:
		return "waiting"
	case PartiallyAllocated:
		return "partially-allocated"
	case FullyAllocated:
		return "fully-allocated"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}
