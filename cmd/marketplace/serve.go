package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"streetart_marketplace/internal/handler"
	"streetart_marketplace/internal/middleware"
	"streetart_marketplace/internal/migrate"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/internal/worker"
)

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations on start")
	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if !skipMigrate {
		if err := migrate.Migrate(ctx, d.db, d.log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	repos := repository.NewRepositories(d.db, d.rdb, d.cfg.Realtime.ChannelPrefix, d.log)
	services := service.NewServices(repos, d.cfg, d.log)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, d.log)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, d.log)

	checks := map[string]handler.HealthCheck{
		"database": d.db.Ping,
		"redis":    func(ctx context.Context) error { return d.rdb.Ping(ctx).Err() },
	}
	handlers := handler.NewHandlers(services, repos.ChangeFeed, checks, d.cfg, d.log)
	router := handler.NewRouter(handlers, authMiddleware, rateLimitMiddleware, d.cfg, d.log)

	var reconciler *worker.Reconciler
	if d.cfg.Reconcile.Enabled {
		reconciler, err = worker.NewReconciler(services.Lifecycle, d.cfg.Reconcile.Schedule, d.log)
		if err != nil {
			return err
		}
		reconciler.Start()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  d.cfg.Server.ReadTimeout,
		WriteTimeout: d.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		d.log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	d.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if reconciler != nil {
		reconciler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	d.log.Info("Server exited")
	return nil
}
