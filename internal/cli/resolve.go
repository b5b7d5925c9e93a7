package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abczzz13/proxytrace"
)

type resolveFlags struct {
	remoteAddr string
	xff        []string
	trust      []string
	format     string
}

func newResolveCmd() *cobra.Command {
	flags := &resolveFlags{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the trace for a remote address and X-Forwarded-For chain",
		Long: "Builds the nearest-first chain from --remote-addr and the --xff header lines and\n" +
			"prints the peer, proxy and intermediate proxies. --trust replaces the trust list\n" +
			"from the config file.",
		Example: "  proxytrace resolve --remote-addr 10.0.0.2:443 --xff \"203.0.113.7, 10.0.0.9\" --trust 10.0.0.0/8",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.remoteAddr, "remote-addr", "", "Address of the directly connected client (host or host:port)")
	cmd.Flags().StringArrayVar(&flags.xff, "xff", nil, "X-Forwarded-For header line (repeat for multiple lines)")
	cmd.Flags().StringSliceVar(&flags.trust, "trust", nil, "Trusted address, CIDR or named range (loopback, linklocal, uniquelocal)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text|json)")
	_ = cmd.MarkFlagRequired("remote-addr")

	return cmd
}

func runResolve(cmd *cobra.Command, flags *resolveFlags) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := cfg.TracerOptions()
	if len(flags.trust) > 0 {
		opts = append(opts, proxytrace.Trust(proxytrace.TrustSpec{Addrs: flags.trust}))
	}
	opts = append(opts, proxytrace.WithLogger(newLogger(cfg, cmd.ErrOrStderr())))

	tracer, err := proxytrace.New(opts...)
	if err != nil {
		return err
	}

	trace, err := tracer.TraceFrom(proxytrace.RequestInput{
		Context:    cmd.Context(),
		RemoteAddr: flags.remoteAddr,
		Headers: proxytrace.HeaderValuesFunc(func(string) []string {
			return flags.xff
		}),
		Source: proxytrace.SourceValues,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	switch flags.format {
	case "json":
		return writeTraceJSON(cmd.OutOrStdout(), trace)
	case "text":
		return writeTraceText(cmd.OutOrStdout(), trace)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", flags.format)
	}
}

func writeTraceJSON(w io.Writer, trace proxytrace.Trace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(trace)
}

func writeTraceText(w io.Writer, trace proxytrace.Trace) error {
	proxy := trace.Proxy
	if !trace.HasProxy() {
		proxy = "-"
	}

	intermediate := strings.Join(trace.IntermediateProxies, ", ")
	if intermediate == "" {
		intermediate = "-"
	}

	_, err := fmt.Fprintf(w, "peer:                 %s\nproxy:                %s\nintermediate proxies: %s\n",
		trace.Peer, proxy, intermediate)
	return err
}
