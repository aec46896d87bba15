package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ShardBoard/internal/logger"
	"ShardBoard/internal/snapshot"
	"ShardBoard/internal/storage"
)

func snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the node state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the state to a compressed snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotExport,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot file into an empty data directory",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotImport,
	})

	return cmd
}

// openStore opens the configured store; the node must not be running.
func openStore(cmd *cobra.Command) (*storage.Storage, error) {
	cfg := configFrom(cmd)

	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(cfg.DataPath, "db"))
	if err != nil {
		return nil, fmt.Errorf("open storage:\n%w", err)
	}

	return db, nil
}

func snapshotExport(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	data, info, err := snapshot.Export(db)
	if err != nil {
		return fmt.Errorf("export:\n%w", err)
	}

	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("write snapshot:\n%w", err)
	}

	logger.Info("snapshot exported",
		"file", args[0],
		"block", info.Block,
		"entries", info.Entries,
		"bytes", len(data),
	)

	return nil
}

func snapshotImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot:\n%w", err)
	}

	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	info, err := snapshot.Import(db, data)
	if err != nil {
		return fmt.Errorf("import:\n%w", err)
	}

	logger.Info("snapshot imported",
		"file", args[0],
		"block", info.Block,
		"entries", info.Entries,
	)

	return nil
}
