package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ShardBoard/internal/auth"
)

func keygenCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a BLS key and print its account id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}

			key, err := auth.GenerateKey()
			if err != nil {
				return err
			}

			if err := auth.SaveKey(out, key); err != nil {
				return fmt.Errorf("save key:\n%w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), key.Account().String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "shardboard.key", "key file to write")

	return cmd
}
