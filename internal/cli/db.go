package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/cratedb"
)

// dbCommand creates the db command group for inspecting the persistent
// crate database.
func (c *CLI) dbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the crate version database",
	}

	cmd.AddCommand(c.dbPathCommand())
	cmd.AddCommand(c.dbListCommand())

	return cmd
}

func (c *CLI) dbPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the database file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.DatabasePath
			if path == "" {
				path = cratedb.DefaultPath()
			}
			fmt.Println(path)
			return nil
		},
	}
}

func (c *CLI) dbListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked crate versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.DatabasePath
			if path == "" {
				path = cratedb.DefaultPath()
			}
			db, err := cratedb.LoadOrEmpty(path, c.Logger)
			if err != nil {
				return err
			}
			if db.Len() == 0 {
				printInfo("Database is empty")
				return nil
			}
			for _, e := range db.Entries() {
				line := fmt.Sprintf("%-40s %s", e.Key(), e.Version)
				if !e.Compatible {
					line += " " + StyleWarning.Render("(incompatible)")
				}
				fmt.Println(line)
			}
			printDetail("%d entries", db.Len())
			return nil
		},
	}
}
