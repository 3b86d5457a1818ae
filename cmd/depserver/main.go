// Command depserver runs the dependency graph engine's HTTP service
// (spec.md §6): edge lifecycle mutations, graph materialization, CPM,
// and cycle detection, over a PostgreSQL-compatible store with
// fire-and-forget NATS JetStream event publication.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getailigned/dependency-service/internal/config"
	"github.com/getailigned/dependency-service/internal/depservice"
	"github.com/getailigned/dependency-service/internal/events"
	"github.com/getailigned/dependency-service/internal/httpapi"
	"github.com/getailigned/dependency-service/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "depserver",
	Short: "depserver - dependency graph engine",
	Long:  `Multi-tenant dependency graph engine: edge lifecycle, critical path method, and cycle detection over a shared work item store.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to ./config.yaml if present)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgStore, err := store.NewPostgresStore(ctx, store.PoolConfig{
		DSN:             cfg.StoreDSN,
		MaxConns:        cfg.StoreMaxConns,
		MaxConnIdleTime: cfg.StoreIdleTime,
		AcquireTimeout:  cfg.StoreAcquireTO,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer pgStore.Close()

	var publisher events.Publisher
	natsPublisher, err := events.Connect(cfg.NATSURL, log)
	if err != nil {
		log.Warn("nats connect failed, falling back to a no-op publisher", "error", err)
		publisher = events.NoopPublisher{}
	} else {
		publisher = natsPublisher
	}

	svc := depservice.New(pgStore, publisher, log)

	mux := httpapi.NewMux(svc, httpapi.Options{
		Log:               log,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitWindow:   cfg.RateLimitWindow,
		RateLimitRequests: cfg.RateLimitRequests,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("depserver listening", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
