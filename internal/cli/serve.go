package cli

import (
	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/internal/server"
)

// serveCommand creates the bundle HTTP server command.
//
// The served directory must contain a previously materialized bundle. The
// server exposes the system index, the loader script, and the software tree
// so a Lisp image on another host can load the bundle over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <bundle-dir>",
		Short: "Serve a materialized bundle over HTTP",
		Long: `Serve a previously materialized bundle directory over HTTP.

Examples:
  ql serve ./bundle
  ql serve ./bundle --addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(args[0], c.Logger)
			if err != nil {
				return err
			}
			printInfo("Serving %s on %s", args[0], addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}
