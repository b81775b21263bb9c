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

// Package metrics exposes ledger activity and detection verdicts as
// Prometheus collectors, fed through the ledger's event hooks.
package metrics

import (
	"cmp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cockroachdb/gridlock/ledger"
)

// Metrics bundles the collectors for one ledger.
type Metrics struct {
	Grants     prometheus.Counter
	Queued     prometheus.Counter
	Releases   prometheus.Counter
	Resources  prometheus.Gauge
	Detections prometheus.Counter
	Deadlocks  prometheus.Counter
}

// New registers the collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Grants: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridlock_grants_total",
			Help: "Resource grants, including grants forwarded on release.",
		}),
		Queued: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridlock_queued_total",
			Help: "Requests that joined a wait queue.",
		}),
		Releases: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridlock_releases_total",
			Help: "Orders released.",
		}),
		Resources: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridlock_registered_resources",
			Help: "Resources registered with the ledger.",
		}),
		Detections: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridlock_detections_total",
			Help: "Deadlock detection runs.",
		}),
		Deadlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridlock_deadlocks_total",
			Help: "Detection runs that found a cycle.",
		}),
	}
}

// LedgerEvents adapts the collectors into ledger callbacks. Chain is
// invoked after the counters update and may be nil.
func LedgerEvents[R, O cmp.Ordered](m *Metrics, chain *ledger.Events[R, O]) *ledger.Events[R, O] {
	return &ledger.Events[R, O]{
		OnGrant: func(resource R, order O) {
			m.Grants.Inc()
			if chain != nil && chain.OnGrant != nil {
				chain.OnGrant(resource, order)
			}
		},
		OnQueue: func(resource R, order O) {
			m.Queued.Inc()
			if chain != nil && chain.OnQueue != nil {
				chain.OnQueue(resource, order)
			}
		},
		OnRegister: func(resource ledger.Resource[R]) {
			m.Resources.Inc()
			if chain != nil && chain.OnRegister != nil {
				chain.OnRegister(resource)
			}
		},
		OnRelease: func(order O, freed []R) {
			m.Releases.Inc()
			if chain != nil && chain.OnRelease != nil {
				chain.OnRelease(order, freed)
			}
		},
	}
}

// ObserveDetection records one detection run and its verdict.
func (m *Metrics) ObserveDetection(deadlocked bool) {
	m.Detections.Inc()
	if deadlocked {
		m.Deadlocks.Inc()
	}
}
