package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/tracer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := tracer.Init(ctx, cfg.Tracing, cfg.App)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracer(shutdownCtx); err != nil {
					log.Warn("tracer shutdown", zap.Error(err))
				}
			}()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := runMigrations(a); err != nil {
					return err
				}
			}

			// Seeding keeps in-memory deployments reachable after a restart.
			if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
				if _, _, err := a.staffSvc.EnsureAdmin(ctx, password, ""); err != nil {
					return fmt.Errorf("seeding admin: %w", err)
				}
			}

			router := v1.NewRouter(ctx, v1.RouterDeps{
				Config:      cfg,
				Log:         log.Named("http"),
				Metrics:     a.metrics,
				JWT:         a.jwt,
				PatientSvc:  a.patientSvc,
				StaffSvc:    a.staffSvc,
				AuthSvc:     a.authSvc,
				HealthCheck: a.healthCheck,
			})

			srv := &http.Server{
				Addr:         cfg.Server.Address(),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				log.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	return cmd
}
