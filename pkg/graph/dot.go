// Package graph renders lockfile dependency graphs as Graphviz DOT and
// SVG, for inspecting what a recursive packaging run will cover.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/cratepack/cratepack/pkg/lockfile"
)

// Options configures DOT output.
type Options struct {
	// Versions includes the pinned version in each node label.
	Versions bool

	// HighlightDuplicates fills nodes of crates pinned at more than one
	// version, the usual cause of bloated dependency trees.
	HighlightDuplicates bool
}

// ToDOT converts a lockfile graph to Graphviz DOT. Nodes are keyed by
// name and version so duplicate versions of a crate appear separately.
func ToDOT(g *lockfile.Graph, opts Options) string {
	multi := map[string]bool{}
	if opts.HighlightDuplicates {
		seen := map[string]int{}
		for _, p := range g.Packages() {
			seen[p.Name]++
		}
		for name, n := range seen {
			if n > 1 {
				multi[name] = true
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph deps {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, p := range g.Packages() {
		label := p.Name
		if opts.Versions {
			label += "\n" + p.Version.String()
		}
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if multi[p.Name] {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p.ID().String(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, p := range g.Packages() {
		for _, d := range p.Dependencies {
			to := lockfile.ID{Name: d.Name, Version: d.Version}
			fmt.Fprintf(&buf, "  %q -> %q;\n", p.ID().String(), to.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders DOT to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
