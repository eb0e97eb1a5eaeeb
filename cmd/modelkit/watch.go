package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/modelkit/bootstrap"
	"github.com/artpar/modelkit/core/formatter"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var hotReload bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Revalidate schemas whenever they change",
		Long: `Validate a schema directory, then watch it and revalidate after every
change. Unchanged files are served from the cache.

When metrics.enabled is set, an HTTP server on metrics.addr serves:
  /metrics        Prometheus metrics
  /health/ready   200 once the latest run found no errors
  /status         the latest validation report
  /cache          cache hit and miss counters

The config file is reloaded on change and on SIGHUP unless --hot-reload=false.

Examples:
  modelkit watch
  modelkit watch schemas/ --hot-reload=false`,
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the config file on change")

	// Hot reload is decided before the application is wired.
	setup := c.setup
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c.hotReload = hotReload
		return setup(cmd, args)
	}

	cmd.RunE = c.run(func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return c.watch(ctx, cmd, c.schemaDir(args))
	})
	return cmd
}

func (c *cli) watch(ctx context.Context, cmd *cobra.Command, dir string) error {
	out, f := cmd.OutOrStdout(), c.output()

	w := c.app.NewWatcher(dir, bootstrap.OnResult(func(r bootstrap.Result) {
		st := r.Status
		if st.Error != "" {
			fmt.Fprintf(out, "[%s] %s: %s\n", st.CheckedAt.Format("15:04:05"), dir, st.Error)
			return
		}
		fmt.Fprintf(out, "[%s] %d models, %d errors, %d warnings\n",
			st.CheckedAt.Format("15:04:05"), st.Models, len(st.Report.Errors), len(st.Report.Warnings))
		if records := formatter.IssueRecords(st.Report); len(records) > 0 {
			f.FormatList(out, formatter.IssueListing, records, formatter.FormatOptions{})
		}
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := c.app.Serve(ctx, w)
		if err != nil {
			cancel()
		}
		serveErr <- err
	}()

	err := w.Run(ctx)
	cancel()
	return errors.Join(err, <-serveErr)
}
