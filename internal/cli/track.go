package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/cratedb"
	"github.com/cratepack/cratepack/pkg/lockfile"
	"github.com/cratepack/cratepack/pkg/packager"
	"github.com/cratepack/cratepack/pkg/semver"
)

// trackCommand creates the track command: reconcile a lockfile against
// the persistent crate database and package what changed.
func (c *CLI) trackCommand() *cobra.Command {
	var (
		dbPath  string
		output  string
		refresh bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "track <Cargo.lock>",
		Short: "Package the crates a lockfile adds or upgrades",
		Long: `Track parses a Cargo.lock file, merges its pinned versions into the
persistent crate database, and packages every crate that is new or
upgraded within its compatibility series. The database is only written
back when packaging succeeded and the run is not a dry run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.DatabasePath
			}
			if dbPath == "" {
				dbPath = cratedb.DefaultPath()
			}
			if output == "" {
				output = cfg.OutputDir
			}
			if output == "" {
				output = "."
			}

			logger := loggerFromContext(cmd.Context())
			p := newProgress(logger)
			graph, err := lockfile.ParseFile(args[0])
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Parsed %d packages from lockfile", graph.Len()))
			for _, s := range graph.Skipped {
				logger.Warn("skipped lockfile entry", "entry", s)
			}

			fresh := cratedb.New()
			for _, pkg := range graph.Packages() {
				fresh.Add(cratedb.NewEntry(pkg.Name, pkg.Version))
			}

			db, err := cratedb.LoadOrEmpty(dbPath, logger)
			if err != nil {
				return err
			}
			needsAction := db.Merge(fresh)
			if len(needsAction) == 0 {
				printSuccess("Database already covers every pinned version")
				return nil
			}
			printInfo("%d crate(s) need packaging", len(needsAction))

			reader, err := c.newReader(cfg, refresh)
			if err != nil {
				return err
			}
			builder := &packager.Builder{Reader: reader, Config: cfg, Logger: logger}
			walker := &packager.Walker{Builder: builder, OutputDir: output, Logger: logger}

			roots := map[string]semver.Version{}
			for _, e := range needsAction {
				roots[e.Name] = e.Version
			}
			report, err := walker.WalkRoots(cmd.Context(), roots)
			if err != nil {
				return err
			}
			printReport(report)

			if dryRun || cfg.Testing {
				printWarning("dry run: database not written")
				return nil
			}
			if len(report.Failed) > 0 {
				printWarning("failures recorded: database not written")
				return nil
			}
			if err := db.Save(dbPath); err != nil {
				return err
			}
			printSuccess("Database updated")
			printFile(dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "crate database file (default from config, else "+cratedb.DefaultPath()+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "descriptor output directory (default from config, else .)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the response cache")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "package but leave the database untouched")
	return cmd
}
