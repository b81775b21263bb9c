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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cockroachdb/gridlock/ledger"
	"github.com/cockroachdb/gridlock/orders"
)

func newLedger(t *testing.T, resources ...string) *ledger.Ledger[string, string] {
	t.Helper()
	l := ledger.New[string, string]()
	for _, res := range resources {
		require.NoError(t, l.Register(ledger.Resource[string]{ID: res, Kind: "utensil"}))
	}
	return l
}

func request(t *testing.T, l *ledger.Ledger[string, string], order, resource string) {
	t.Helper()
	_, err := l.Request(order, resource)
	require.NoError(t, err)
}

func TestEmptyStateHasNoDeadlock(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "r1")

	result, err := Detect(l.Snapshot(), nil)
	r.NoError(err)
	r.False(result.Deadlocked())
	r.Nil(result.Cycle())
	r.Nil(result.Explain())
}

func TestAcyclicWaits(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "r1", "r2")

	request(t, l, "alice", "r1")
	request(t, l, "bob", "r2")
	request(t, l, "bob", "r1")
	request(t, l, "carol", "r2")

	result, err := Detect(l.Snapshot(), []string{"alice", "bob", "carol"})
	r.NoError(err)
	r.False(result.Deadlocked())

	g := result.Graph()
	r.Equal([]string{"alice", "bob", "carol"}, g.Nodes())
	r.Equal([]Edge[string, string]{
		{Waiter: "bob", Resource: "r1", Holder: "alice"},
		{Waiter: "carol", Resource: "r2", Holder: "bob"},
	}, g.Edges())
}

// The canonical three-way deadlock: alice holds r1 and waits on r2,
// bob holds r2 and waits on r3, carol holds r3 and waits on r1.
func TestThreeWayCycle(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "r1", "r2", "r3")

	request(t, l, "alice", "r1")
	request(t, l, "bob", "r2")
	request(t, l, "carol", "r3")
	request(t, l, "alice", "r2")
	request(t, l, "bob", "r3")
	request(t, l, "carol", "r1")

	result, err := Detect(l.Snapshot(), []string{"alice", "bob", "carol"})
	r.NoError(err)
	r.True(result.Deadlocked())
	r.ElementsMatch([]string{"alice", "bob", "carol"}, result.Cycle())

	explained := result.Explain()
	r.Len(explained, 3)
	byWaiter := map[string]Edge[string, string]{}
	for _, e := range explained {
		byWaiter[e.Waiter] = e
	}
	r.Equal(Edge[string, string]{Waiter: "alice", Resource: "r2", Holder: "bob"}, byWaiter["alice"])
	r.Equal(Edge[string, string]{Waiter: "bob", Resource: "r3", Holder: "carol"}, byWaiter["bob"])
	r.Equal(Edge[string, string]{Waiter: "carol", Resource: "r1", Holder: "alice"}, byWaiter["carol"])
}

func TestDeterminism(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "r1", "r2", "r3")

	request(t, l, "alice", "r1")
	request(t, l, "bob", "r2")
	request(t, l, "carol", "r3")
	request(t, l, "alice", "r2")
	request(t, l, "bob", "r3")
	request(t, l, "carol", "r1")

	active := []string{"carol", "alice", "bob"}
	first, err := Detect(l.Snapshot(), active)
	r.NoError(err)
	for i := 0; i < 10; i++ {
		again, err := Detect(l.Snapshot(), active)
		r.NoError(err)
		r.Equal(first.Cycle(), again.Cycle())
		r.Equal(first.Explain(), again.Explain())
	}
}

// End-to-end: the two-order oven/pan standoff, resolved by releasing
// one side.
func TestKitchenStandoff(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "oven", "pan")
	reg := orders.NewRegistry(l)
	det := NewDetector[string, string](reg)

	r.NoError(reg.Submit("alice", []string{"oven", "pan"}, orders.WithDeferredRequests()))
	r.NoError(reg.Submit("bob", []string{"pan", "oven"}, orders.WithDeferredRequests()))

	for _, step := range []struct{ order, resource string }{
		{"alice", "oven"},
		{"bob", "pan"},
		{"alice", "pan"},
		{"bob", "oven"},
	} {
		_, err := reg.Request(step.order, step.resource)
		r.NoError(err)
	}

	result, err := det.Detect()
	r.NoError(err)
	r.True(result.Deadlocked())
	r.ElementsMatch([]string{"alice", "bob"}, result.Cycle())

	_, err = reg.Release("alice")
	r.NoError(err)

	result, err = det.Detect()
	r.NoError(err)
	r.False(result.Deadlocked())

	status, err := reg.Status("bob")
	r.NoError(err)
	r.Equal(orders.FullyAllocated, status)
}

func TestVictim(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "oven", "pan")

	request(t, l, "alice", "oven")
	request(t, l, "bob", "pan")
	request(t, l, "alice", "pan")
	request(t, l, "bob", "oven")

	result, err := Detect(l.Snapshot(), []string{"alice", "bob"})
	r.NoError(err)

	priorities := map[string]int{"alice": 2, "bob": 7}
	victim, ok := Victim(result, func(id string) int { return priorities[id] })
	r.True(ok)
	r.Equal("bob", victim)

	// Ties go to the largest id.
	victim, ok = Victim(result, func(string) int { return 5 })
	r.True(ok)
	r.Equal("bob", victim)

	empty, err := Detect(newLedger(t, "oven").Snapshot(), nil)
	r.NoError(err)
	_, ok = Victim(empty, func(string) int { return 0 })
	r.False(ok)
}

// Detection racing a release must never observe a snapshot whose
// holders have already left the active set; the registry hands both
// out as one atomic view.
func TestDetectDuringRelease(t *testing.T) {
	const numOrders = 500
	r := require.New(t)
	l := newLedger(t, "oven")
	reg := orders.NewRegistry(l)
	det := NewDetector[string, string](reg)

	done := make(chan struct{})
	var eg errgroup.Group
	eg.Go(func() error {
		defer close(done)
		for i := 0; i < numOrders; i++ {
			id := fmt.Sprintf("order-%06d", i)
			if err := reg.Submit(id, []string{"oven"}); err != nil {
				return err
			}
			if _, err := reg.Release(id); err != nil {
				return err
			}
		}
		return nil
	})
	eg.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			result, err := det.Detect()
			if err != nil {
				return err
			}
			if result.Deadlocked() {
				return fmt.Errorf("unexpected deadlock: %v", result.Cycle())
			}
		}
	})
	r.NoError(eg.Wait())
}

func TestInconsistentState(t *testing.T) {
	r := require.New(t)
	l := newLedger(t, "oven")

	request(t, l, "alice", "oven")
	request(t, l, "bob", "oven")

	// A holder missing from the active set is a state-keeper bug.
	_, err := Detect(l.Snapshot(), []string{"bob"})
	inconsistent := &InconsistentStateError{}
	r.ErrorAs(err, &inconsistent)
	r.Equal("allocation", inconsistent.Mapping)

	// So is a queued waiter missing from the active set.
	_, err = Detect(l.Snapshot(), []string{"alice"})
	r.ErrorAs(err, &inconsistent)
	r.Equal("wait", inconsistent.Mapping)
}
