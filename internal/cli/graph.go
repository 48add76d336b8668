package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/graph"
	"github.com/cratepack/cratepack/pkg/lockfile"
)

// graphCommand creates the graph command: render a lockfile's
// dependency graph.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output     string
		versions   bool
		duplicates bool
	)

	cmd := &cobra.Command{
		Use:   "graph <Cargo.lock>",
		Short: "Render a lockfile's dependency graph",
		Long: `Graph parses a Cargo.lock file and renders its registry dependency
graph. The output format follows the file extension: .dot writes
Graphviz source, anything else renders SVG.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := lockfile.ParseFile(args[0])
			if err != nil {
				return err
			}
			for _, s := range g.Skipped {
				c.Logger.Warn("skipped lockfile entry", "entry", s)
			}

			dot := graph.ToDOT(g, graph.Options{
				Versions:            versions,
				HighlightDuplicates: duplicates,
			})

			var data []byte
			if strings.HasSuffix(output, ".dot") {
				data = []byte(dot)
			} else {
				p := newProgress(c.Logger)
				data, err = graph.RenderSVG(cmd.Context(), dot)
				if err != nil {
					return err
				}
				p.done(fmt.Sprintf("Rendered %d packages", g.Len()))
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			printSuccess("Wrote dependency graph")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "deps.svg", "output file (.dot or .svg)")
	cmd.Flags().BoolVar(&versions, "versions", false, "include pinned versions in node labels")
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "highlight crates pinned at multiple versions")
	return cmd
}
