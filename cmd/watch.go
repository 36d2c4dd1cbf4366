package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/csvsource/internal/datasource"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/presentation"
	"github.com/zjrosen/csvsource/internal/pubsub"
	"github.com/zjrosen/csvsource/internal/watcher"
)

var watchOpts queryOptions

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-run a query whenever a CSV file changes",
	Long: `Run a query against a CSV file, then run it again every time the file
changes on disk. Each change registers the new contents under a fresh handle.
Takes the same flags as 'csvsource query'. Stop with Ctrl+C.

Example:
  csvsource watch people.csv -D ';' -a id,name -f name=Alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cmd.Flags(), watchOpts)
		if err != nil {
			return err
		}
		ds, err := newDataSource()
		if err != nil {
			return err
		}
		defer func() { _ = ds.Close(context.Background()) }()

		out, err := newFormatter(cmd.OutOrStdout(), watchOpts.output)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runWatch(ctx, ds, out, cmd.ErrOrStderr(), args[0], req, watchOpts)
	},
}

func init() {
	addQueryFlags(watchCmd.Flags(), &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

// runWatch queries path once, then again after every settled change, until
// ctx ends. Query errors are reported and watching continues.
func runWatch(ctx context.Context, ds *datasource.DataSource, out *presentation.Formatter, errOut io.Writer,
	path string, req datasource.Request, o queryOptions) error {
	w, err := watcher.New(watcher.Config{Path: path, Debounce: cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}
	go logNotices(ds.Subscribe(ctx))

	run := func() error {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		reg, err := registerOptions(string(payload), o)
		if err != nil {
			return err
		}
		return runQuery(ctx, ds, out, reg, req, false)
	}

	if err := run(); err != nil {
		log.ErrorErr(log.CatCLI, "Query failed", err, "path", path)
		fmt.Fprintln(errOut, "error:", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			log.Debug(log.CatCLI, "File changed, re-running query", "path", path)
			if err := run(); err != nil {
				log.ErrorErr(log.CatCLI, "Query failed", err, "path", path)
				fmt.Fprintln(errOut, "error:", err)
			}
		}
	}
}

// logNotices records data source lifecycle events until the subscription ends.
func logNotices(events <-chan pubsub.Event[datasource.Notice]) {
	for ev := range events {
		n := ev.Payload
		switch ev.Type {
		case pubsub.ParseFailedEvent:
			log.ErrorErr(log.CatWatcher, "Reloaded file failed to parse", n.Err, "handle", n.Handle)
		default:
			log.Debug(log.CatWatcher, "Data source event", "type", string(ev.Type),
				"handle", n.Handle, "bytes", n.Bytes, "rows", n.Rows)
		}
	}
}
