package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Koalla18/TakeSmart/internal/api"
	"github.com/Koalla18/TakeSmart/internal/cacheaside"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/observability"
	"github.com/Koalla18/TakeSmart/internal/search"
	"github.com/Koalla18/TakeSmart/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		httpAddr string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if logLevel != "" {
				cfg.Observability.Logging.Level = logLevel
			}

			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
			metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, nil)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := observability.Init(ctx, observability.Config{
				Enabled:        cfg.Observability.Tracing.Enabled,
				Exporter:       cfg.Observability.Tracing.Exporter,
				Endpoint:       cfg.Observability.Tracing.Endpoint,
				ServiceName:    "takesmart",
				ServiceVersion: version,
				SampleRate:     cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				_ = observability.Shutdown(sctx)
			}()

			pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN, store.PostgresOptions{
				MaxConns:     cfg.Postgres.MaxConns,
				EmbeddingDim: cfg.Search.EmbeddingDim,
			})
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer pg.Close()

			backend, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			aside := cacheaside.New(backend.cache, cacheaside.Options{
				TTL:       cfg.Cache.TTL,
				OpTimeout: cfg.Cache.OpTimeout,
			})
			coord := cacheaside.NewCoordinator(backend.cache, 0)
			if backend.inv != nil {
				coord.SetPublisher(backend.inv)
			}
			router := search.NewStoreRouter(pg, search.Config{
				EmbeddingDim: cfg.Search.EmbeddingDim,
				DefaultLimit: cfg.Search.DefaultLimit,
				MaxLimit:     cfg.Search.MaxLimit,
			})
			catalog := store.NewCachedStore(pg, aside, coord, router)

			access := logging.Default()
			if cfg.HTTP.AccessLog != "" {
				if err := access.SetOutput(cfg.HTTP.AccessLog); err != nil {
					return fmt.Errorf("open access log: %w", err)
				}
				defer access.Close()
			}

			srv := api.NewServer(cfg.HTTP.Addr, api.ServerConfig{
				Store:       catalog,
				Cache:       backend.cache,
				Coordinator: coord,
				AccessLog:   access,
				Limiter:     backend.limiter(cfg),
				TrustProxy:  cfg.HTTP.RateLimit.TrustProxy,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logging.Op().Info("catalog API started",
					"addr", cfg.HTTP.Addr,
					"cache", cfg.Cache.Backend,
					"embedding_dim", cfg.Search.EmbeddingDim)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			if backend.listen {
				g.Go(func() error {
					if err := backend.inv.Start(gctx); err != nil {
						return fmt.Errorf("cache invalidation listener: %w", err)
					}
					return nil
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				logging.Op().Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				if backend.inv != nil {
					_ = backend.inv.Close()
				}
				return srv.Shutdown(sctx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	return cmd
}
