package main

import (
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node",
		RunE:  serveRun,
	}

	cmd.Flags().String("data", "", "data directory (overrides config)")
	cmd.Flags().String("http", "", "HTTP listen address (overrides config)")

	return cmd
}

// serveRun starts the node and blocks until it is signalled to stop.
func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)

	if f := cmd.Flags().Lookup("data"); f != nil && f.Changed {
		cfg.DataPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("http"); f != nil && f.Changed {
		cfg.HTTPAddress = f.Value.String()
	}

	node, err := NewNode(cfg)
	if err != nil {
		return err
	}

	return node.Run()
}
