package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/core/formatter"
)

func (c *cli) newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check every schema in a directory for consistency",
		Long: `Parse every schema file under a directory (schemas.dir by default) and
check the set for consistency.

Checks:
  - Field types are registered and their configuration is valid
  - Relationship targets exist and pivot tables resolve
  - Relationships have an inverse (warning)
  - belongsTo chains have no cycles (warning)
  - Validation rules reference known rules and columns

The command exits non-zero when errors are found, or when warnings are
found in strict mode.

Examples:
  modelkit validate
  modelkit validate schemas/ --strict
  modelkit validate -o json`,
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as failures (overrides schemas.strict)")

	cmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		dir := c.schemaDir(args)
		set, report, err := c.app.Validate(cmd.Context(), dir)
		if err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}

		out := cmd.OutOrStdout()
		f := c.output()
		if err := f.FormatList(out, formatter.IssueListing, formatter.IssueRecords(report), formatter.FormatOptions{}); err != nil {
			return err
		}
		if f.Name() == "table" {
			fmt.Fprintf(out, "\n%d models, %d errors, %d warnings\n", len(set), len(report.Errors), len(report.Warnings))
		}

		if !report.IsValid() {
			return fmt.Errorf("%w: %d errors", errValidationFailed, len(report.Errors))
		}
		if (strict || c.app.Config().Schemas.Strict) && len(report.Warnings) > 0 {
			return fmt.Errorf("%w: %d warnings in strict mode", errValidationFailed, len(report.Warnings))
		}
		return nil
	})
	return cmd
}
