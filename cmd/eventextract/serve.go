package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleister1102/eventextract/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction service",
	Long: `Serve exposes POST /extract together with /health, /live, /ready and
/metrics. It shuts down gracefully on SIGINT or SIGTERM.

Examples:
  eventextract serve
  eventextract serve --config ./config.yaml --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server_config.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flagConfigPath)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := a.config.ServerConfig
	if flagAddr != "" {
		serverCfg.Addr = flagAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(serverCfg, a.pipeline, a.metrics, a.logger, a.renderer)
	return srv.ListenAndServe(ctx)
}
