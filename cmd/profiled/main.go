package main

import (
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/goProfile/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const serviceName = "profiled"

type app struct {
	configPath string
	cfg        config.Config
	logger     zerolog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Profile, session and admin capability service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "keygen" {
				return nil
			}
			return a.load()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newIndexCommand(a))
	cmd.AddCommand(newTailCommand(a))
	cmd.AddCommand(newBootstrapCommand(a))
	cmd.AddCommand(newKeygenCommand())
	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	zerolog.TimeFieldFormat = time.RFC3339Nano
	a.logger = zerolog.New(os.Stdout).
		Level(cfg.Level()).
		With().
		Str("service", serviceName).
		Timestamp().
		Logger()
	return nil
}
