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
	"strings"
)

// DOT exports Graphviz DOT text. Each edge is labeled with the
// contended resource.
func (g *Graph[R, O]) DOT() string {
	var b strings.Builder
	b.WriteString("digraph waitfor {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[O]string, len(g.nodes))
	for i, o := range g.nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[o] = alias
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, escapeDOT(fmt.Sprint(o))))
	}
	for _, o := range g.nodes {
		for _, e := range g.edges[o] {
			b.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\"];\n",
				aliases[e.Waiter], aliases[e.Holder], escapeDOT(fmt.Sprint(e.Resource))))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g *Graph[R, O]) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[O]string, len(g.nodes))
	for i, o := range g.nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[o] = alias
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, escapeMermaid(fmt.Sprint(o))))
	}
	for _, o := range g.nodes {
		for _, e := range g.edges[o] {
			b.WriteString(fmt.Sprintf("    %s -->|%s| %s\n",
				aliases[e.Waiter], escapeMermaid(fmt.Sprint(e.Resource)), aliases[e.Holder]))
		}
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
