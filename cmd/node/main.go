package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ShardBoard/internal/config"
	"ShardBoard/internal/logger"
)

const programName = "shardboard"

// configKey carries the loaded configuration in the command context.
type configKey struct{}

var globalFlags = struct {
	configFile string
	debug      bool
}{}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// rootCommand builds the command tree.
func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Sharded message board with commit-reveal content attestation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "path to config file")
	root.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.configFile)
		if err != nil {
			return fmt.Errorf("load config:\n%w", err)
		}

		if globalFlags.debug {
			cfg.LogLevel = "debug"
		}

		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.Init(level)

		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	}

	root.AddCommand(serveCommand())
	root.AddCommand(keygenCommand())
	root.AddCommand(snapshotCommand())

	return root
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}
