// Demobackend is a small HTTP server to route traffic to during local runs.
// It answers /health, creates items with unique ids, echoes requests and can
// be told to fail its health probe.
//
// Usage:
//
//	go run ./cmd/demobackend --port 8002 --name server1
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/health-router/internal/httpserver"
	"github.com/angeloszaimis/health-router/pkg/logger"
)

func main() {
	var (
		port int
		name string
	)

	cmd := &cobra.Command{
		Use:          "demobackend",
		Short:        "Run a demo endpoint for the health router",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New("info", false, "dev").With(slog.String("backend", name))

			srv, err := httpserver.New(fmt.Sprintf(":%d", port), newBackend(name, log).routes())
			if err != nil {
				return err
			}

			log.Info("Starting demo backend", slog.Int("port", port))
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 8002, "port to listen on")
	cmd.Flags().StringVar(&name, "name", "server1", "name reported in responses")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
