// Package cli implements the cratepack command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cratepack/cratepack/pkg/buildinfo"
	"github.com/cratepack/cratepack/pkg/config"
	"github.com/cratepack/cratepack/pkg/httputil"
	"github.com/cratepack/cratepack/pkg/integrations/crates"
)

const (
	// appName is the application name used for directories and display.
	appName = "cratepack"

	// defaultCacheTTL is how long crates.io responses stay fresh.
	defaultCacheTTL = 24 * time.Hour
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cratepack",
		Short:        "Cratepack turns cargo crates into deb-style package descriptors",
		Long:         `Cratepack converts crate dependency metadata into deb-style package relationships: semver requirements become versioned package clauses, feature graphs become minimal package sets, and whole dependency trees can be packaged recursively against a persistent version database.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(c.depsCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.trackCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.dbCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configured (or default) config file.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.LoadOrDefault(path)
}

// newReader creates the crates.io client backed by the file cache.
func (c *CLI) newReader(cfg *config.Config, refresh bool) (*crates.Client, error) {
	dir := cfg.CacheDir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return nil, err
		}
	}
	cache, err := httputil.NewCache(dir, defaultCacheTTL)
	if err != nil {
		return nil, err
	}
	client := crates.NewClient(cache)
	client.Refresh = refresh
	return client, nil
}

// cacheDir returns the cache directory using the XDG convention
// (~/.cache/cratepack/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
