package cli

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/config"
	"github.com/cratepack/cratepack/pkg/deb"
	"github.com/cratepack/cratepack/pkg/manifest"
	"github.com/cratepack/cratepack/pkg/packager"
)

// depsCommand creates the deps command: translate one crate's
// dependency surface without writing anything.
func (c *CLI) depsCommand() *cobra.Command {
	var (
		refresh     bool
		features    []string
		allFeatures bool
		noDefault   bool
	)

	cmd := &cobra.Command{
		Use:   "deps <crate>[@<version>]",
		Short: "Show a crate's translated package relationships",
		Long: `Deps fetches one crate from crates.io and prints the deb-style view of
its metadata: the toolchain build dependencies, the installable package
per surviving feature, and each package's Provides and Depends clauses.

With a feature selection (--features, --all-features,
--no-default-features) it additionally resolves the selected features to
their full transitive dependency clause list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version := splitCrateArg(args[0])

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			reader, err := c.newReader(cfg, refresh)
			if err != nil {
				return err
			}

			builder := &packager.Builder{Reader: reader, Config: cfg, Logger: c.Logger}
			p := newProgress(c.Logger)
			desc, crate, err := builder.Build(cmd.Context(), name, version)
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Translated %s %s", desc.Crate, desc.Version))

			printKeyValue("crate", desc.Crate)
			printKeyValue("version", desc.Version)
			printKeyValue("compat", desc.CompatVersion)
			printKeyValue("source", desc.Source)
			printKeyValue("build-depends", strings.Join(desc.BuildDepends, ", "))
			if len(desc.TestDepends) > 0 {
				printKeyValue("test-depends", strings.Join(desc.TestDepends, ", "))
			}

			for _, pkg := range desc.Packages {
				fmt.Println()
				printInfo("%s", StyleHighlight.Render(pkg.Name))
				if len(pkg.Provides) > 0 {
					printDetail("provides: %s", strings.Join(pkg.Provides, ", "))
				}
				if len(pkg.Depends) > 0 {
					printDetail("depends:  %s", strings.Join(pkg.Depends, ", "))
				}
			}

			if allFeatures || noDefault || len(features) > 0 {
				selected := selectFeatures(crate.Features, features, allFeatures, noDefault)
				clauses, err := resolveFeatureClauses(crate, selected, cfg, c.Logger)
				if err != nil {
					return err
				}
				fmt.Println()
				label := strings.Join(selected, ", ")
				if label == "" {
					label = "none"
				}
				printInfo("Resolved dependencies (features: %s)", label)
				for _, clause := range clauses {
					printDetail("%s", clause)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the response cache")
	cmd.Flags().StringSliceVar(&features, "features", nil, "features to enable for the resolved dependency list")
	cmd.Flags().BoolVar(&allFeatures, "all-features", false, "enable every declared feature")
	cmd.Flags().BoolVar(&noDefault, "no-default-features", false, "leave the default feature disabled")
	return cmd
}

// selectFeatures turns the cargo-style feature flags into the concrete
// feature list to resolve.
func selectFeatures(g manifest.FeatureGraph, requested []string, all, noDefault bool) []string {
	if all {
		var fs []string
		for f := range g {
			if f != "" {
				fs = append(fs, f)
			}
		}
		sort.Strings(fs)
		return fs
	}
	fs := slices.Clone(requested)
	if _, ok := g["default"]; ok && !noDefault && !slices.Contains(fs, "default") {
		fs = append(fs, "default")
	}
	sort.Strings(fs)
	return fs
}

// resolveFeatureClauses resolves the selected features through the
// feature graph and translates the union of their runtime dependencies.
func resolveFeatureClauses(crate *manifest.Crate, selected []string, cfg *config.Config, logger *log.Logger) ([]string, error) {
	seen := map[string]bool{}
	var deps []manifest.Dependency
	for _, f := range append([]string{""}, selected...) {
		_, fdeps, err := manifest.TransitiveDeps(crate.Features, f)
		if err != nil {
			return nil, err
		}
		for _, d := range fdeps {
			if d.Kind != manifest.KindNormal {
				continue
			}
			if sig := d.Signature(); !seen[sig] {
				seen[sig] = true
				deps = append(deps, d)
			}
		}
	}

	tr := &deb.Translator{AllowPrerelease: cfg.PrereleaseAllowed(crate.Name), Logger: logger}
	return tr.Dependencies(deps)
}

// splitCrateArg splits a "name@version" argument; the version part is
// optional.
func splitCrateArg(arg string) (name, version string) {
	if i := strings.LastIndexByte(arg, '@'); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}
