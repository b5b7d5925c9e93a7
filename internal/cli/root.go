// Package cli implements the proxytrace command.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abczzz13/proxytrace/internal/config"
)

// NewRootCommand builds the proxytrace command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "proxytrace",
		Short: "Resolve the origin of requests relayed through proxies",
		Long: "Resolves the peer, proxy and intermediate proxies of a request from its remote\n" +
			"address, X-Forwarded-For chain and a trusted proxy list.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML config file (PROXYTRACE_* variables override it)")

	root.AddCommand(newResolveCmd())
	root.AddCommand(newServeCmd())

	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}

	return cfg, path, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	// Validated by config.Load.
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
