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
	"fmt"
)

// DuplicateResourceError means a resource id was registered twice.
type DuplicateResourceError[R cmp.Ordered] struct {
	ID R
}

func (e *DuplicateResourceError[R]) Error() string {
	return fmt.Sprintf("duplicate resource: %v", e.ID)
}

// UnknownResourceError means a request referenced a resource id that
// was never registered.
type UnknownResourceError[R cmp.Ordered] struct {
	ID R
}

func (e *UnknownResourceError[R]) Error() string {
	return fmt.Sprintf("unknown resource: %v", e.ID)
}
