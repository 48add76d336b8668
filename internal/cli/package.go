package cli

import (
	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/packager"
)

// packageCommand creates the package command: write descriptors for one
// crate or its whole dependency tree.
func (c *CLI) packageCommand() *cobra.Command {
	var (
		recursive bool
		refresh   bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "package <crate>[@<version>]",
		Short: "Write package descriptors for a crate",
		Long: `Package fetches a crate from crates.io, translates it, and writes its
package descriptor as JSON. With --recursive the entire dependency tree
is walked depth-first; each crate name is packaged once, at the first
version encountered, and failures are recorded without stopping the
walk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version := splitCrateArg(args[0])

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.OutputDir
			}
			if output == "" {
				output = "."
			}
			reader, err := c.newReader(cfg, refresh)
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			builder := &packager.Builder{Reader: reader, Config: cfg, Logger: logger}

			if !recursive {
				p := newProgress(logger)
				desc, _, err := builder.Build(cmd.Context(), name, version)
				if err != nil {
					return err
				}
				path, err := desc.Write(output)
				if err != nil {
					return err
				}
				p.done("Packaged " + desc.Crate + " " + desc.Version)
				printSuccess("%s %s", desc.Crate, desc.Version)
				printFile(path)
				return nil
			}

			walker := &packager.Walker{Builder: builder, OutputDir: output, Logger: logger}
			p := newProgress(logger)
			report, err := walker.Walk(cmd.Context(), name, version)
			if err != nil {
				return err
			}
			p.done("Walked dependency tree")
			printReport(report)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "package the full dependency tree")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the response cache")
	cmd.Flags().StringVarP(&output, "output", "o", "", "descriptor output directory (default from config, else .)")
	return cmd
}
