package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/httpapi"
	"github.com/aretw0/notetaker/internal/platform"
)

var (
	serveAddr    string
	serveOrigins []string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notebook over HTTP",
	Long: `Serve the notebook API and the live event stream until interrupted.
Pending edits are saved on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		return withAppContext(ctx, func(ctx context.Context, app *platform.App) error {
			srv := httpapi.New(app.Notebook,
				httpapi.WithLogger(logger),
				httpapi.WithOriginPatterns(serveOrigins...),
			)
			logger.Info("serving notebook", "addr", addr, "path", cfg.Store.Path, "adapter", cfg.Store.Adapter)
			return srv.ListenAndServe(ctx, addr)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default server.addr)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "Allowed websocket origin patterns (repeatable)")
	rootCmd.AddCommand(serveCmd)
}
