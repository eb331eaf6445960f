package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foundry/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the pipeline operations over HTTP, with a server-sent event stream
per project and prometheus metrics on /metrics.

The server shuts down gracefully on Ctrl+C, after in-flight requests finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}

		srv := api.NewServer(a.machine,
			api.WithBus(a.bus),
			api.WithLogger(a.logger),
			api.WithCORSOrigins(a.cfg.Server.CORSOrigins),
			api.WithDebug(a.cfg.Server.Debug),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	})
}
