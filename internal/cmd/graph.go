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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cockroachdb/gridlock/internal/scenario"
	"github.com/cockroachdb/gridlock/ledger"
	"github.com/cockroachdb/gridlock/orders"
	"github.com/cockroachdb/gridlock/waitfor"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph <scenario.yaml>",
	Short: "Export the scenario's wait-for graph",
	Long: `Replay the scenario and print its wait-for graph for external
visualization.

Examples:
  gridlock graph kitchen.yaml --format dot | dot -Tsvg > kitchen.svg
  gridlock graph kitchen.yaml --format mermaid`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphFormat, "format", "dot",
		"output format (dot, mermaid)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	l := ledger.New[string, string]()
	reg := orders.NewRegistry(l)
	if err := s.Apply(l, reg); err != nil {
		return err
	}

	snap, active := reg.View()
	g, err := waitfor.BuildGraph(snap, active)
	if err != nil {
		return err
	}

	switch graphFormat {
	case "dot":
		fmt.Fprint(cmd.OutOrStdout(), g.DOT())
	case "mermaid":
		fmt.Fprint(cmd.OutOrStdout(), g.Mermaid())
	default:
		return fmt.Errorf("unknown graph format %q", graphFormat)
	}
	return nil
}
