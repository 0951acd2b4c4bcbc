// Command server runs the prediction HTTP service, the
// process the retrainer never shares.
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
	"go.uber.org/zap"

	"github.com/keiba-predict/engine/config"
	"github.com/keiba-predict/engine/httpapi"
	"github.com/keiba-predict/engine/modelmanager"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/prediction"
	"github.com/keiba-predict/engine/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the prediction HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.InitLogger(cfg.LogLevel, cfg.LogJSON)
	log := config.Logger()

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("server: open store: %w", err)
	}
	defer s.Close()

	mgr := modelmanager.New(cfg.ModelPath)
	// Fail fast: the mixed-variant artifact must exist before serving
	// traffic.
	if _, _, err := mgr.Load(models.SurfaceUnknown); err != nil {
		return fmt.Errorf("server: load active model: %w", err)
	}

	facade := prediction.New(s, mgr, log, cfg.BiasDate)
	srv := httpapi.NewServer(s, facade, cfg.RateLimitPerMinute)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen: %w", err)
	case <-sigCh:
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func openStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (store.Store, error) {
	if cfg.DBMode == config.DBModeMock {
		return store.NewMockStore(), nil
	}
	return store.NewPostgresStore(ctx, store.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     int(cfg.DBPort),
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		PoolMin:  cfg.DBPoolMin,
		PoolMax:  cfg.DBPoolMax,
	}, log)
}
