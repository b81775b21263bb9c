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

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestZeroValue(t *testing.T) {
	r := require.New(t)

	var v Var[int]
	value, changed := v.Get()
	r.Zero(value)

	v.Set(42)
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	r.Equal(42, v.Peek())
}

func TestVarOf(t *testing.T) {
	r := require.New(t)

	v := VarOf("hello")
	value, _ := v.Get()
	r.Equal("hello", value)
}

func TestBroadcast(t *testing.T) {
	const numWaiters = 16
	r := require.New(t)

	v := VarOf(0)
	_, changed := v.Get()

	var eg errgroup.Group
	for i := 0; i < numWaiters; i++ {
		eg.Go(func() error {
			<-changed
			return nil
		})
	}
	v.Set(1)
	r.NoError(eg.Wait())

	// The channel from a later Get is armed for the next update.
	value, next := v.Get()
	r.Equal(1, value)
	select {
	case <-next:
		t.Fatal("unexpected notification")
	default:
	}
}
