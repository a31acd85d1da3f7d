package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegraph/internal/server"
	"github.com/matzehuels/lanegraph/pkg/session"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr    string        // listen address
	root    string        // directory session paths resolve against
	ttl     time.Duration // idle session lifetime
	noCache bool          // bypass the details cache
}

// serveCommand creates the serve command for the HTTP session API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graph sessions over HTTP",
		Long: `Serve an HTTP JSON API that opens graph sessions over repositories below
the root directory. Clients page in history, fold runs and fetch row ranges.`,
		Example: `  lanegraph serve --root ~/src --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.addr == "" {
				opts.addr = c.config.Server.Addr
			}
			if opts.root == "" {
				opts.root = c.config.Server.Root
			}
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, "+server.DefaultAddr+")")
	cmd.Flags().StringVar(&opts.root, "root", "", "directory repository paths are resolved against")
	cmd.Flags().DurationVar(&opts.ttl, "session-ttl", session.DefaultTTL, "drop sessions idle for this long")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the details cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	root, err := filepath.Abs(opts.root)
	if err != nil {
		return err
	}
	backend, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer backend.Close()

	sopts := c.config.sessionOptions()
	sopts.TTL = opts.ttl
	srv := server.New(server.Config{
		Addr:       opts.addr,
		Root:       root,
		Session:    sopts,
		Cache:      backend,
		DetailsTTL: c.config.Cache.TTL,
		Logger:     logger,
	})

	printLink("Serving", "http://"+displayAddr(opts.addr)+"/api/sessions")
	printDetail("Root: %s", root)
	return srv.ListenAndServe(ctx)
}

// displayAddr turns a bare port like ":8080" into a browsable host.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
