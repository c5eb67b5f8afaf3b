package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MrEthical07/goProfile/bus"
	"github.com/spf13/cobra"
)

var errNoBus = errors.New("tail requires PROFILED_NATS_URL")

func newTailCommand(a *app) *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print indexed facts from NATS as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := a.connectBus()
			if err != nil {
				return err
			}
			if b == nil {
				return errNoBus
			}
			defer b.Close()

			c, err := bus.NewFactConsumer(b, durable, factPrinter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Close()

			a.logger.Info().Str("durable", durable).Msg("tailing facts")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&durable, "durable", bus.DefaultFactDurable, "JetStream durable consumer name")
	return cmd
}

// factPrinter writes one JSON object per fact. Deliveries run on NATS
// goroutines, so writes are serialized.
func factPrinter(w io.Writer) bus.FactHandler {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(_ context.Context, msg bus.FactMessage) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(msg)
	}
}
