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

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cockroachdb/gridlock/internal/metrics"
	"github.com/cockroachdb/gridlock/internal/scenario"
	"github.com/cockroachdb/gridlock/ledger"
	"github.com/cockroachdb/gridlock/orders"
	"github.com/cockroachdb/gridlock/waitfor"
)

var (
	resolve       bool
	metricsListen string
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Replay a scenario and report deadlocks",
	Long: `Replay the scenario's resource registrations and order submissions,
then run deadlock detection on the resulting allocation state.

With --resolve, detected cycles are broken by releasing the least
urgent order in the cycle (ties go to the largest order id) until the
state is deadlock free.

Examples:
  # Report whether the scenario deadlocks
  gridlock run kitchen.yaml

  # Break every cycle and show the surviving allocations
  gridlock run kitchen.yaml --resolve

  # Expose ledger metrics while running
  gridlock run kitchen.yaml --metrics-listen :9153`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&resolve, "resolve", false,
		"release the least urgent order in each detected cycle")
	runCmd.Flags().StringVar(&metricsListen, "metrics-listen", "",
		"serve Prometheus metrics on this address while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	l := ledger.New[string, string]()
	reg := orders.NewRegistry(l)

	logEvents := &ledger.Events[string, string]{
		OnGrant: func(resource, order string) {
			slog.Debug("granted", "resource", resource, "order", order)
		},
		OnQueue: func(resource, order string) {
			slog.Debug("queued", "resource", resource, "order", order)
		},
		OnRelease: func(order string, freed []string) {
			slog.Info("released", "order", order, "freed", freed)
		},
	}

	var m *metrics.Metrics
	if metricsListen != "" {
		promReg := prometheus.NewRegistry()
		m = metrics.New(promReg)
		l.SetEvents(metrics.LedgerEvents(m, logEvents))

		lis, err := net.Listen("tcp", metricsListen)
		if err != nil {
			return err
		}
		defer lis.Close()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server", "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", lis.Addr().String())
	} else {
		l.SetEvents(logEvents)
	}

	if err := s.Apply(l, reg); err != nil {
		return err
	}

	det := waitfor.NewDetector[string, string](reg)
	deadlocked := false
	for {
		result, err := det.Detect()
		if err != nil {
			return err
		}
		if m != nil {
			m.ObserveDetection(result.Deadlocked())
		}
		if !result.Deadlocked() {
			break
		}
		deadlocked = true

		fmt.Fprintf(cmd.OutOrStdout(), "deadlock: %v\n", result.Cycle())
		for _, edge := range result.Explain() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", edge)
		}
		if !resolve {
			printOrders(cmd, reg)
			return fmt.Errorf("deadlock detected: %v", result.Cycle())
		}

		victim, _ := waitfor.Victim(result, func(id string) int {
			order, _, err := reg.Get(id)
			if err != nil {
				return orders.DefaultPriority
			}
			return order.Priority
		})
		slog.Info("breaking cycle", "victim", victim)
		grants, err := reg.Release(victim)
		if err != nil {
			return err
		}
		for _, g := range grants {
			slog.Info("forwarded", "resource", g.Resource, "order", g.Order)
		}
	}

	if deadlocked {
		fmt.Fprintln(cmd.OutOrStdout(), "state is deadlock free after resolution")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "no deadlock")
	}
	printOrders(cmd, reg)
	return nil
}

func printOrders(cmd *cobra.Command, reg *orders.Registry[string, string]) {
	for _, info := range reg.List() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-20s priority=%d needs=%v\n",
			info.Order.ID, info.Status, info.Order.Priority, info.Order.Resources)
	}
}
