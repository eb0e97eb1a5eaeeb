package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/formatter"
	"github.com/artpar/modelkit/core/schema"
)

// Sections inspect can show on their own.
var inspectSections = []string{"fields", "relationships", "options"}

func (c *cli) newInspectCmd() *cobra.Command {
	var (
		section string
		check   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the parsed form of one schema file",
		Long: `Show the parsed form of one schema file.

Without --section the whole schema is parsed (through the cache) and its
effective fields, relationships and options are shown. With --section only
that part of a YAML or JSON document is built. --check runs the structural
checks without building anything.

Examples:
  modelkit inspect schemas/post.yaml
  modelkit inspect schemas/post.yaml --section relationships -o yaml
  modelkit inspect schemas/post.yaml --check`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&section, "section", "s", "", "show one section: fields, relationships or options")
	cmd.Flags().BoolVar(&check, "check", false, "only check the document structure")

	cmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if section != "" && !validSection(section) {
			return fmt.Errorf("unknown section %q (available: %v)", section, inspectSections)
		}

		format, ok := schema.FormatFor(path)
		quick := ok && format == schema.FormatYAML
		if check {
			return c.checkFile(cmd, path, quick)
		}
		if section != "" && quick {
			return c.inspectSection(cmd, path, section)
		}

		s, err := c.app.Loader().ParseFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		return c.showSchema(cmd, s, section)
	})
	return cmd
}

func validSection(name string) bool {
	for _, s := range inspectSections {
		if s == name {
			return true
		}
	}
	return false
}

func (c *cli) checkFile(cmd *cobra.Command, path string, quick bool) error {
	if quick {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file %s: %w", path, err)
		}
		opt := cache.NewOptimizer(schema.NewParser(c.app.Types))
		if err := opt.QuickValidateNamed(data, schema.NameFromPath(path)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	} else if _, err := c.app.Loader().ParseFile(cmd.Context(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	return nil
}

// inspectSection builds one section of a YAML or JSON document.
func (c *cli) inspectSection(cmd *cobra.Command, path, section string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	opt := cache.NewOptimizer(schema.NewParser(c.app.Types))
	out, f := cmd.OutOrStdout(), c.output()

	switch section {
	case "fields":
		fields, err := opt.Fields(data)
		if err != nil {
			return err
		}
		return f.FormatList(out, formatter.FieldListing, formatter.FieldRecords(fields), formatter.FormatOptions{})
	case "relationships":
		rels, err := opt.Relationships(data)
		if err != nil {
			return err
		}
		owner := modelName(opt, data, path)
		return f.FormatList(out, formatter.RelationshipListing, formatter.RelationshipRecords(owner, rels), formatter.FormatOptions{})
	default:
		opts, err := opt.Options(data)
		if err != nil {
			return err
		}
		return f.FormatRecord(out, formatter.OptionListing, formatter.OptionRecord(opts), formatter.FormatOptions{})
	}
}

// modelName reads the declared model name, falling back to the file name.
func modelName(opt *cache.Optimizer, data []byte, path string) string {
	for _, key := range []string{"model", "name"} {
		if v, ok, err := opt.Section(data, key); err == nil && ok {
			if name, isString := v.(string); isString && name != "" {
				return name
			}
		}
	}
	return schema.NameFromPath(path)
}

func (c *cli) showSchema(cmd *cobra.Command, s *schema.Schema, section string) error {
	out, f := cmd.OutOrStdout(), c.output()
	opts := formatter.FormatOptions{}

	switch section {
	case "fields":
		return f.FormatList(out, formatter.FieldListing, formatter.FieldRecords(s.EffectiveFields()), opts)
	case "relationships":
		return f.FormatList(out, formatter.RelationshipListing, formatter.RelationshipRecords(s.Name(), s.Relationships()), opts)
	case "options":
		return f.FormatRecord(out, formatter.OptionListing, formatter.OptionRecord(s.Options()), opts)
	}

	if f.Name() != "table" {
		return f.FormatRecord(out, formatter.SchemaListing, formatter.SchemaRecord(s), opts)
	}
	if err := f.FormatRecord(out, formatter.SchemaListing, formatter.SchemaRecord(s), opts); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := f.FormatList(out, formatter.FieldListing, formatter.FieldRecords(s.EffectiveFields()), opts); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return f.FormatList(out, formatter.RelationshipListing, formatter.RelationshipRecords(s.Name(), s.Relationships()), opts)
}
