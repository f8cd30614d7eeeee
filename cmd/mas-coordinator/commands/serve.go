package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mascoordinator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat completion endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Address the HTTP server listens on (default :8055)")
	serveCmd.Flags().String("deployment-name", "", "Deployment name served by this coordinator")
	serveCmd.Flags().Float64("rate-limit", 0, "Requests per second allowed per caller, 0 disables limiting")
	serveCmd.Flags().Int("rate-burst", 0, "Burst size of the per caller rate limit")
	serveCmd.Flags().String("ums-endpoint", "", "Base URL of the UMS agent")
	serveCmd.Flags().Bool("tracing-enabled", false, "Export traces over OTLP/gRPC")
	serveCmd.Flags().String("tracing-endpoint", "", "OTLP gRPC endpoint, e.g. otel-collector:4317")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"server.addr":            "addr",
		"server.deployment_name": "deployment-name",
		"server.rate_limit":      "rate-limit",
		"server.rate_burst":      "rate-burst",
		"agents.ums.endpoint":    "ums-endpoint",
		"tracing.enabled":        "tracing-enabled",
		"tracing.endpoint":       "tracing-endpoint",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := mascoordinator.New(ctx, cfg)
	if err != nil {
		return err
	}
	logger := svc.Logger()
	srv := svc.Server()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := errors.Join(srv.Shutdown(shutdownCtx), svc.Shutdown(shutdownCtx))
		if err == nil {
			logger.Info("shutdown complete")
		}
		return err
	})

	return g.Wait()
}
