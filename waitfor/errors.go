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

import "fmt"

// InconsistentStateError means a snapshot violated a ledger invariant.
// Mapping names the relation at fault ("allocation" or "wait") and
// Detail identifies the offending ids. It is fatal to the current
// detection call and indicates a bug in the state keeper.
type InconsistentStateError struct {
	Mapping string
	Detail  string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent %s state: %s", e.Mapping, e.Detail)
}
