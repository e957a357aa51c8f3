package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/expiry-notifier/internal/api/http"
	"github.com/spec-kit/expiry-notifier/internal/api/http/handlers"
	"github.com/spec-kit/expiry-notifier/internal/auth"
	"github.com/spec-kit/expiry-notifier/internal/config"
	"github.com/spec-kit/expiry-notifier/internal/observability"
	"github.com/spec-kit/expiry-notifier/internal/worker"
)

func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the queue worker",
		Long:  "Start the long-running service: the admin HTTP API and the background worker draining the delivery queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	creds, err := auth.NewCredentials(cfg.Auth)
	if err != nil {
		return fmt.Errorf("operator credentials: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	qworker := worker.New(worker.Dependencies{
		Queue:      c.queue,
		Settings:   c.settings,
		Ledger:     c.ledger,
		Transport:  newTransportFactory(logger),
		Dispatcher: c.dispatcher,
		Clock:      c.clk,
		Logger:     logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, c.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, c.store, c.redis),
		Auth:           handlers.NewAuthHandler(creds, tokens),
		Profiles:       handlers.NewProfilesHandler(c.profiles),
		Jobs:           handlers.NewJobsHandler(c.profiles, c.jobs),
		Queue:          handlers.NewQueueHandler(c.queue),
		History:        handlers.NewHistoryHandler(c.ledger),
		Settings:       handlers.NewSettingsHandler(c.settings),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        c.metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		qworker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})
	return g.Wait()
}
