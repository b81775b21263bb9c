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

package scenario

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/gridlock/ledger"
	"github.com/cockroachdb/gridlock/orders"
	"github.com/cockroachdb/gridlock/waitfor"
)

const kitchen = `
resources:
  - id: oven
    kind: oven
  - id: pan
    kind: utensil
orders:
  - id: alice
    priority: 2
    needs: [oven, pan]
  - id: bob
    needs: [pan, oven]
steps:
  - order: alice
    request: oven
  - order: bob
    request: pan
  - order: alice
    request: pan
  - order: bob
    request: oven
`

func TestParse(t *testing.T) {
	r := require.New(t)

	s, err := Parse([]byte(kitchen))
	r.NoError(err)
	r.Len(s.Resources, 2)
	r.Len(s.Orders, 2)
	r.Len(s.Steps, 4)
	r.Equal(2, *s.Orders[0].Priority)
	r.Nil(s.Orders[1].Priority)
}

func TestParseAssignsIDs(t *testing.T) {
	r := require.New(t)

	s, err := Parse([]byte(`
resources:
  - id: oven
orders:
  - needs: [oven]
  - needs: [oven]
`))
	r.NoError(err)
	r.NotEmpty(s.Orders[0].ID)
	r.NotEmpty(s.Orders[1].ID)
	r.NotEqual(s.Orders[0].ID, s.Orders[1].ID)
}

func TestParseRejectsBadInput(t *testing.T) {
	r := require.New(t)

	_, err := Parse([]byte(`orders: [{id: a, needs: [oven]}]`))
	r.ErrorContains(err, "no resources")

	_, err = Parse([]byte(`
resources: [{id: oven}]
orders: [{id: a}]
`))
	r.ErrorContains(err, "needs no resources")

	_, err = Parse([]byte(`
resources: [{id: oven}]
orders: [{id: a, needs: [oven]}]
steps: [{order: a}]
`))
	r.ErrorContains(err, "step 0")
}

func TestApply(t *testing.T) {
	r := require.New(t)

	s, err := Parse([]byte(kitchen))
	r.NoError(err)

	l := ledger.New[string, string]()
	reg := orders.NewRegistry(l)
	r.NoError(s.Apply(l, reg))

	snap, active := reg.View()
	result, err := waitfor.Detect(snap, active)
	r.NoError(err)
	r.True(result.Deadlocked())
	r.ElementsMatch([]string{"alice", "bob"}, result.Cycle())
}

func TestApplyWithoutSteps(t *testing.T) {
	r := require.New(t)

	s, err := Parse([]byte(`
resources: [{id: oven, kind: oven}]
orders:
  - id: alice
    needs: [oven]
  - id: bob
    needs: [oven]
`))
	r.NoError(err)

	l := ledger.New[string, string]()
	reg := orders.NewRegistry(l)
	r.NoError(s.Apply(l, reg))

	status, err := reg.Status("alice")
	r.NoError(err)
	r.Equal(orders.FullyAllocated, status)
	status, err = reg.Status("bob")
	r.NoError(err)
	r.Equal(orders.Waiting, status)
}
