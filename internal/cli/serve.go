package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abczzz13/proxytrace/internal/server"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve request traces over HTTP (and gRPC when grpc_listen is set)",
		Long: "Starts an HTTP server that answers every request with its resolved trace as JSON\n" +
			"and exposes Prometheus metrics at /metrics. With --watch the config file is\n" +
			"reloaded when it changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())

			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch && path != "" {
				reloader, err := server.NewReloader(srv, path)
				if err != nil {
					return err
				}
				go func() {
					_ = reloader.Run(ctx)
				}()
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the config file when it changes")

	return cmd
}

