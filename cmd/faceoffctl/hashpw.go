package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/charity-faceoff/internal/auth"
)

func hashpwCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashpw [password]",
		Short: "Print the bcrypt hash to use as ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
