package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/core/cache"
)

// purger is implemented by stores that keep expired rows until asked.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func (c *cli) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the schema and report cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry under the configured cache prefix",
		Args:  cobra.NoArgs,
	}
	clearCmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		store := c.app.Store
		if store == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled.")
			return nil
		}
		prefix := c.app.Config().Cache.Prefix
		if err := cache.Flush(cmd.Context(), store, prefix); err != nil {
			return fmt.Errorf("clear %s cache: %w", store.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache (prefix %q).\n", store.Name(), prefix)
		return nil
	})

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove expired entries from a database-backed cache",
		Args:  cobra.NoArgs,
	}
	purgeCmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		store := c.app.Store
		if store == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled.")
			return nil
		}
		p, ok := store.(purger)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "The %s cache drops expired entries on read.\n", store.Name())
			return nil
		}
		n, err := p.Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge %s cache: %w", store.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries.\n", n)
		return nil
	})

	cmd.AddCommand(clearCmd, purgeCmd)
	return cmd
}
