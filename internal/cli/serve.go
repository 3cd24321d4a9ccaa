package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/flowview/pkg/api"
	pkgio "github.com/matzehuels/flowview/pkg/io"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 10 * time.Minute
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	addr   string
	watch  bool
	strict bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve <dataset>",
		Short: "Serve expand/collapse sessions over HTTP",
		Long: `Serve a dataset over HTTP. Each client creates a session and expands or
collapses nodes in it; the response always carries the visible nodes and
links. Sessions are persisted to the configured store (file by default) and
survive restarts.

With --watch the dataset file is reloaded when it changes. Open sessions
keep their expanded nodes where the IDs still exist.`,
		Example: `  flowview serve examples/budget.json --watch
  curl -X POST localhost:8080/sessions
  curl -X POST localhost:8080/sessions/<id>/expand/expenses`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload the dataset when the file changes")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail if the dataset does not validate")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, path string, opts serveOptions) error {
	ds, err := c.loadDataset(path, opts.strict)
	if err != nil {
		return err
	}

	store, err := c.openStore(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer store.Close()

	addr := opts.addr
	if addr == "" {
		addr = c.Config.Addr
	}
	logger := loggerFromContext(ctx)
	srv := api.New(ds, store, api.WithLogger(logger), api.WithTTL(c.Config.TTL()))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "addr", "http://"+addr, "store", c.Config.Store)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return c.cleanupLoop(ctx, srv, cleanupInterval)
	})

	if opts.watch {
		g.Go(func() error {
			logger.Info("Watching", "file", path)
			return pkgio.Watch(ctx, path, pkgio.DefaultDebounce, func(ds pkgio.Dataset, err error) {
				c.reload(ctx, srv, ds, err, opts.strict)
			})
		})
	}

	return g.Wait()
}

// reload swaps a changed dataset into the server. Read and validation
// failures keep the previous dataset.
func (c *CLI) reload(ctx context.Context, srv *api.Server, ds pkgio.Dataset, err error, strict bool) {
	if err != nil {
		c.Logger.Error("Reload failed, keeping previous dataset", "err", err)
		return
	}
	if verr := ds.Validate(); verr != nil && (strict || c.Config.Strict) {
		c.Logger.Error("Reload rejected, keeping previous dataset", "err", verr)
		return
	}
	if pkgio.Fingerprint(ds) == srv.Fingerprint() {
		return
	}
	if err := srv.Reload(ctx, ds); err != nil {
		c.Logger.Error("Reload failed", "err", err)
	}
}

// cleanupLoop removes expired sessions from the store and the server's
// memory every interval until ctx is done.
func (c *CLI) cleanupLoop(ctx context.Context, srv *api.Server, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := srv.Cleanup(ctx); err != nil {
				c.Logger.Warn("Session cleanup failed", "err", err)
			}
		}
	}
}
