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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDOT(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "oven", "pan")

	request(t, l, "alice", "oven")
	request(t, l, "bob", "pan")
	request(t, l, "alice", "pan")
	request(t, l, "bob", "oven")

	g, err := BuildGraph(l.Snapshot(), []string{"alice", "bob"})
	r.NoError(err)

	dot := g.DOT()
	r.Contains(dot, "digraph waitfor {")
	r.Contains(dot, `n0 [label="alice"];`)
	r.Contains(dot, `n1 [label="bob"];`)
	r.Contains(dot, `n0 -> n1 [label="pan"];`)
	r.Contains(dot, `n1 -> n0 [label="oven"];`)

	mermaid := g.Mermaid()
	r.Contains(mermaid, "graph TD")
	r.Contains(mermaid, `n0["alice"]`)
	r.Contains(mermaid, "n0 -->|pan| n1")
	r.Contains(mermaid, "n1 -->|oven| n0")
}
