package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/core/formatter"
)

func (c *cli) newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered field types",
		Long: `List every field type in the registry with its aliases, the numeric
constraints it honors and its model cast. Plugin types appear once their
manifests are discovered.

Examples:
  modelkit types
  modelkit types -o json`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		return c.output().FormatList(cmd.OutOrStdout(), formatter.TypeListing, formatter.TypeRecords(c.app.Types), formatter.FormatOptions{})
	})
	return cmd
}
