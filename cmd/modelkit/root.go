package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/bootstrap"
	"github.com/artpar/modelkit/config"
	"github.com/artpar/modelkit/core/formatter"
)

// cli carries the global flags and the application wired for a command.
type cli struct {
	cfgFile  string
	format   string
	logLevel string

	// hotReload is set by commands that keep running.
	hotReload bool

	app *bootstrap.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "modelkit",
		Short: "Validate and inspect declarative model schemas",
		Long: `modelkit reads model schemas written in YAML, JSON or HCL and checks
them for consistency: field types, relationship targets, inverses and
dependency cycles.

Field types come from a registry of built-in types, aliases and plugins
selected by *.plugins.yaml manifests. Parsed schemas and reports are cached
in memory, SQLite or Postgres.

Examples:
  modelkit validate schemas/
  modelkit inspect schemas/post.yaml --section relationships
  modelkit types -o json
  modelkit watch`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "modelkit.yaml", "config file path")
	root.PersistentFlags().StringVarP(&c.format, "format", "o", "table", "output format: table, json or yaml")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		c.newValidateCmd(),
		c.newInspectCmd(),
		c.newTypesCmd(),
		c.newPluginsCmd(),
		c.newCacheCmd(),
		c.newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and wires the application.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if _, err := formatter.Lookup(c.format); err != nil {
		return err
	}

	cfg, err := config.LoadWithFallback(c.cfgFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		cfg.Logging.Level = c.logLevel
	}
	logger := bootstrap.NewLogger(cfg.Logging, cmd.ErrOrStderr())

	if c.hotReload && fileExists(c.cfgFile) {
		c.app, err = bootstrap.NewWithHotReload(cmd.Context(), c.cfgFile, bootstrap.WithLogger(logger))
	} else {
		c.app, err = bootstrap.New(cmd.Context(), cfg, bootstrap.WithLogger(logger))
	}
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	for _, f := range c.app.Discovery.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: plugin %s from %s not loaded: %v\n", f.ID, f.Source, f.Err)
	}
	return nil
}

// run wraps a command body so the application is closed even when the
// body fails.
func (c *cli) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if c.app == nil {
				return
			}
			err = errors.Join(err, c.app.Close())
			c.app = nil
		}()
		return fn(cmd, args)
	}
}

// output returns the formatter selected by --format.
func (c *cli) output() formatter.Formatter {
	f, err := formatter.Lookup(c.format)
	if err != nil {
		return formatter.NewTableFormatter()
	}
	return f
}

// schemaDir is the first argument or the configured directory.
func (c *cli) schemaDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return c.app.Config().Schemas.Dir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// errValidationFailed marks a run whose schemas did not pass.
var errValidationFailed = errors.New("validation failed")
