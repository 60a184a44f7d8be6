package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/health-router/config"
	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/handler"
	"github.com/angeloszaimis/health-router/internal/httpserver"
	"github.com/angeloszaimis/health-router/internal/router"
	"github.com/angeloszaimis/health-router/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "healthrouter",
		Short:        "Health-aware traffic router with health and metrics monitoring",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ./config/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(
		newLoadtestCmd(),
		&cobra.Command{
			Use:   "serve",
			Short: "Run the proxy and admin listeners with background health probing",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath, true)
			},
		},
		&cobra.Command{
			Use:   "monitor",
			Short: "Run only the admin listener and health probing",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath, false)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the configuration file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.LoadFrom(configPath)
				if err != nil {
					return fmt.Errorf("configuration validation failed: %w", err)
				}

				if _, err := buildEndpoints(cfg); err != nil {
					return fmt.Errorf("configuration validation failed: %w", err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %d endpoint(s), strategy %s.\n",
					len(cfg.Endpoints), cfg.Strategy.Type)
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of healthrouter",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "healthrouter version %s\n", Version)
				return err
			},
		},
	)

	return rootCmd
}

func run(ctx context.Context, configPath string, withProxy bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		return err
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	rt, err := buildRouter(cfg, log)
	if err != nil {
		log.Error("Failed to initialize router", slog.Any("err", err))
		return err
	}

	admin, err := httpserver.New(cfg.Server.AdminAddress, setupAdminRouter(handler.NewAPIHandler(log, rt), rt))
	if err != nil {
		log.Error("Failed to create admin server", slog.Any("err", err))
		return err
	}

	servers := []*httpserver.Server{admin}

	if withProxy {
		proxyTimeout := cfg.Proxy.TimeoutDuration()
		proxySrv, err := httpserver.New(cfg.Server.Address,
			http.HandlerFunc(handler.NewProxyHandler(log, rt).ServeHTTP),
			httpserver.WithWriteTimeout(proxyTimeout+httpserver.DefaultWriteTimeout),
		)
		if err != nil {
			log.Error("Failed to create proxy server", slog.Any("err", err))
			return err
		}
		servers = append(servers, proxySrv)
	}

	rt.Start(ctx)
	defer rt.Stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		log.Info("Starting listener", slog.String("addr", srv.Addr()))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Listener failed", slog.Any("err", err))
		return err
	}

	log.Info("Shut down gracefully")
	return nil
}

func buildEndpoints(cfg *config.Config) ([]*endpoint.Endpoint, error) {
	endpoints := make([]*endpoint.Endpoint, 0, len(cfg.Endpoints))
	for _, ec := range cfg.Endpoints {
		e, err := endpoint.Parse(ec.Name, ec.URL)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ec.URL, err)
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

func buildRouter(cfg *config.Config, log *slog.Logger) (*router.Router, error) {
	endpoints, err := buildEndpoints(cfg)
	if err != nil {
		return nil, err
	}

	return router.New(endpoints, routerOptions(cfg), log)
}
