package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/core/formatter"
)

func (c *cli) newPluginsCmd() *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List loaded field-type plugins",
		Long: `List the plugins loaded from the manifests in plugins.dirs.

A manifest is a *.plugins.yaml file selecting plugins linked into this
binary by id:

  plugins:
    - id: money
      aliases: [currency]
    - id: ulid
      enabled: false

Examples:
  modelkit plugins
  modelkit plugins --columns name,load_id`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to show")

	cmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		records := formatter.PluginRecords(c.app.Plugins.List())
		return c.output().FormatList(cmd.OutOrStdout(), formatter.PluginListing, records, formatter.FormatOptions{Columns: columns})
	})
	return cmd
}
