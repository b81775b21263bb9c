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

import (
	"cmp"
	"fmt"
)

// DuplicateOrderError means an order id was submitted twice. Released
// ids stay reserved; an order cannot be resubmitted under the same id.
type DuplicateOrderError[O cmp.Ordered] struct {
	ID O
}

func (e *DuplicateOrderError[O]) Error() string {
	return fmt.Sprintf("duplicate order: %v", e.ID)
}

// UnknownOrderError means the order id has never been submitted.
type UnknownOrderError[O cmp.Ordered] struct {
	ID O
}

func (e *UnknownOrderError[O]) Error() string {
	return fmt.Sprintf("unknown order: %v", e.ID)
}

// EmptyRequestError means an order was submitted with no resources.
type EmptyRequestError[O cmp.Ordered] struct {
	ID O
}

func (e *EmptyRequestError[O]) Error() string {
	return fmt.Sprintf("order %v requests no resources", e.ID)
}

// NotRequestedError means an acquisition attempt named a resource that
// is not in the order's immutable resource list.
type NotRequestedError[R, O cmp.Ordered] struct {
	Order    O
	Resource R
}

func (e *NotRequestedError[R, O]) Error() string {
	return fmt.Sprintf("order %v did not request resource %v", e.Order, e.Resource)
}
