package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/parley-labs/parley/internal/config"
	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/internal/metrics"
	"github.com/parley-labs/parley/pkg/adapters/canned"
	httpadapter "github.com/parley-labs/parley/pkg/adapters/http"
	"github.com/parley-labs/parley/pkg/adapters/memory"
	redisadapter "github.com/parley-labs/parley/pkg/adapters/redis"
	"github.com/parley-labs/parley/pkg/adapters/sqlite"
	"github.com/parley-labs/parley/pkg/levels"
	"github.com/parley-labs/parley/pkg/ports"
	"github.com/parley-labs/parley/pkg/practice"
	"github.com/parley-labs/parley/pkg/session"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the practice engine HTTP server",
	Long:  `Starts the engine with the configured store backend, exposing the session API and per-session SSE streams.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		store, locker, err := buildStore(cfg)
		if err != nil {
			return err
		}

		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector())
		m := metrics.New(promReg)

		regOpts := []session.RegistryOption{session.WithRegistryLogger(logger)}
		if locker != nil {
			regOpts = append(regOpts, session.WithDistributedLocker(locker))
		}
		registry := session.NewRegistry(store, regOpts...)

		svc := practice.NewService(
			levels.Default(),
			registry,
			canned.New(time.Now().UnixNano()),
			practice.WithServiceLogger(logger),
			practice.WithMetrics(m),
			practice.WithPolicy(practice.FeedbackPolicy{
				MinMessages:       cfg.Feedback.MinMessages,
				MinObjectivesUsed: cfg.Feedback.MinObjectivesUsed,
			}),
		)

		handler := httpadapter.NewHandler(svc,
			promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
			httpadapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("force close server: %w", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

// buildStore wires the configured backend. The redis backend also provides
// the distributed locker so replicas do not share live sessions.
func buildStore(cfg config.Config) (ports.RecordStore, ports.DistributedLocker, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memory.New(), nil, nil
	case "redis":
		store := redisadapter.New(
			cfg.Store.Redis.Addr,
			cfg.Store.Redis.Password,
			cfg.Store.Redis.DB,
			redisadapter.WithTTL(time.Duration(cfg.Store.Redis.TTL)),
		)
		locker := redisadapter.NewLocker(store.Client(), "parley:session:")
		return store, locker, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
