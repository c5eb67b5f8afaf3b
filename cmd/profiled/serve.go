package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/MrEthical07/goProfile/indexer"
	"github.com/MrEthical07/goProfile/internal/httpapi"
	"github.com/MrEthical07/goProfile/internal/telemetry"
	promexport "github.com/MrEthical07/goProfile/metrics/export/prometheus"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		dev       bool
		withIndex bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, dev || a.cfg.Dev, withIndex)
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "use in-memory redis and an ephemeral signing key")
	cmd.Flags().BoolVar(&withIndex, "index", false, "run the fact indexer in-process (requires postgres_dsn)")
	return cmd
}

func (a *app) serve(ctx context.Context, dev, withIndex bool) error {
	shutdownTracing, err := telemetry.Init(ctx, serviceName, a.cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			a.logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	client, closeRedis, err := a.redisClient(ctx, dev)
	if err != nil {
		return err
	}
	defer closeRedis()

	b, err := a.connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	engine, err := a.buildEngine(client, dev, b)
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		a.logger.Warn().Str("signing", report.SigningAlgorithm).Msg(w)
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(
		promexport.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := []httpapi.Option{
		httpapi.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}

	if a.cfg.PostgresDSN != "" {
		pool, err := indexer.Open(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := indexer.NewPGStore(pool)
		opts = append(opts, httpapi.WithFactIndex(store))

		if withIndex {
			ix := a.newIndexer(facts.NewLog(client, engine.FactsKey()), store, b)
			go func() {
				if err := ix.Run(ctx); err != nil {
					a.logger.Error().Err(err).Msg("indexer stopped")
				}
			}()
		}
	} else if withIndex {
		return errors.New("--index requires postgres_dsn")
	}

	srv, err := httpapi.New(engine, a.logger, opts...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Bool("dev", dev).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}
