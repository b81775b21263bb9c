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

import "cmp"

// Events provides a [Ledger] with optional callbacks to observe
// allocation activity. Callbacks are invoked after the mutation has
// committed and outside the ledger's internal lock, so they may call
// back into the Ledger.
//
// See [Ledger.SetEvents].
type Events[R, O cmp.Ordered] struct {
	OnGrant    func(resource R, order O)
	OnQueue    func(resource R, order O)
	OnRegister func(resource Resource[R])
	OnRelease  func(order O, freed []R)
}

func (e *Events[R, O]) doGrant(resource R, order O) {
	if e != nil && e.OnGrant != nil {
		e.OnGrant(resource, order)
	}
}

func (e *Events[R, O]) doQueue(resource R, order O) {
	if e != nil && e.OnQueue != nil {
		e.OnQueue(resource, order)
	}
}

func (e *Events[R, O]) doRegister(resource Resource[R]) {
	if e != nil && e.OnRegister != nil {
		e.OnRegister(resource)
	}
}

func (e *Events[R, O]) doRelease(order O, freed []R) {
	if e != nil && e.OnRelease != nil {
		e.OnRelease(order, freed)
	}
}
