package main

import (
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goProfile/bus"
	"github.com/MrEthical07/goProfile/facts"
	"github.com/MrEthical07/goProfile/indexer"
	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply fact index schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := indexer.Open(ctx, a.cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := indexer.Migrate(ctx, pool); err != nil {
				return err
			}
			a.logger.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newIndexCommand(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Copy the fact stream into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, closeRedis, err := a.redisClient(ctx, false)
			if err != nil {
				return err
			}
			defer closeRedis()

			pool, err := indexer.Open(ctx, a.cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			b, err := a.connectBus()
			if err != nil {
				return err
			}
			defer b.Close()

			log := facts.NewLog(client, a.cfg.KeyPrefix+":"+a.cfg.FactsStream)
			store := indexer.NewPGStore(pool)
			ix := a.newIndexer(log, store, b)
			if once {
				n, err := ix.Drain(ctx)
				if err != nil {
					return err
				}
				total, err := store.Count(ctx)
				if err != nil {
					return err
				}
				a.logger.Info().
					Int("facts", n).
					Int64("indexed_total", total).
					Str("checkpoint", ix.LastID()).
					Msg("index drained")
				return nil
			}
			return ix.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "index everything available and exit")
	return cmd
}

func (a *app) newIndexer(source indexer.Source, sink indexer.Sink, b *bus.Bus) *indexer.Indexer {
	ix := indexer.New(source, sink, indexer.Config{
		BatchSize: a.cfg.IndexBatchSize,
		Block:     a.cfg.IndexBlock,
	}, a.logger.With().Str("component", "indexer").Logger())
	if b != nil {
		ix.WithPublisher(bus.NewFactPublisher(b))
	}
	return ix
}

