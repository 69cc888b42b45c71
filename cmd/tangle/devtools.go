package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tangle-tui/tangle/internal/config"
	"github.com/tangle-tui/tangle/pkg/devtools"
	"github.com/tangle-tui/tangle/pkg/observe"
	"github.com/tangle-tui/tangle/pkg/tangle"
)

func devtoolsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Run the devtools server standalone",
		Long: `Serve engine metrics, health, and the websocket event stream.

Endpoints:
  /healthz   server health and connected client count
  /metrics   Prometheus metrics
  /ws        JSON stream of engine events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Devtools.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := observe.NewMetrics(observe.WithNamespace(cfg.Metrics.Namespace))
			srv := devtools.NewServer(devtools.Config{Addr: cfg.Devtools.Addr})
			tangle.SetHooks(tangle.MergeHooks(metrics.Hooks(), srv.Hooks()))

			fmt.Printf("devtools listening on %s\n", cfg.Devtools.Addr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
