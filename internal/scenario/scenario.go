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

// Package scenario loads YAML descriptions of a contention workload:
// the resources to register and the orders to submit against them. It
// stands in for a live order-submission driver when exercising the
// core from the command line.
package scenario

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cockroachdb/gridlock/ledger"
	"github.com/cockroachdb/gridlock/orders"
)

// A Resource declares one single-holder resource.
type Resource struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

// An Order declares one order. ID may be omitted, in which case a
// random one is assigned at load time. Needs lists resource ids in
// acquisition order.
type Order struct {
	ID       string   `yaml:"id,omitempty"`
	Priority *int     `yaml:"priority,omitempty"`
	Needs    []string `yaml:"needs"`
}

// A Step is one scripted action. Either Order/Request name a single
// acquisition attempt, or Release names an order to release.
type Step struct {
	Order   string `yaml:"order,omitempty"`
	Request string `yaml:"request,omitempty"`
	Release string `yaml:"release,omitempty"`
}

// A Scenario is a parsed workload file. When Steps is empty, each
// order's requests are forwarded at submission in list order. When
// Steps is present, orders are submitted with deferred requests and
// the steps drive acquisition attempts one at a time; this is how a
// file expresses the interleavings that produce circular waits.
type Scenario struct {
	Resources []Resource `yaml:"resources"`
	Orders    []Order    `yaml:"orders"`
	Steps     []Step     `yaml:"steps,omitempty"`
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario document and fills in generated order ids.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if len(s.Resources) == 0 {
		return nil, fmt.Errorf("scenario declares no resources")
	}
	for i, res := range s.Resources {
		if res.ID == "" {
			return nil, fmt.Errorf("resource %d has no id", i)
		}
	}
	for i := range s.Orders {
		if s.Orders[i].ID == "" {
			s.Orders[i].ID = uuid.NewString()
		}
		if len(s.Orders[i].Needs) == 0 {
			return nil, fmt.Errorf("order %s needs no resources", s.Orders[i].ID)
		}
	}
	for i, step := range s.Steps {
		switch {
		case step.Release != "" && step.Order == "" && step.Request == "":
		case step.Release == "" && step.Order != "" && step.Request != "":
		default:
			return nil, fmt.Errorf("step %d must be either an order/request pair or a release", i)
		}
	}
	return s, nil
}

// Apply registers the scenario's resources and submits its orders, in
// file order.
func (s *Scenario) Apply(l *ledger.Ledger[string, string], reg *orders.Registry[string, string]) error {
	for _, res := range s.Resources {
		if err := l.Register(ledger.Resource[string]{ID: res.ID, Kind: res.Kind}); err != nil {
			return err
		}
	}
	for _, o := range s.Orders {
		opts := []orders.SubmitOption(nil)
		if o.Priority != nil {
			opts = append(opts, orders.WithPriority(*o.Priority))
		}
		if len(s.Steps) > 0 {
			opts = append(opts, orders.WithDeferredRequests())
		}
		if err := reg.Submit(o.ID, o.Needs, opts...); err != nil {
			return err
		}
	}
	for i, step := range s.Steps {
		if step.Release != "" {
			if _, err := reg.Release(step.Release); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			continue
		}
		if _, err := reg.Request(step.Order, step.Request); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
