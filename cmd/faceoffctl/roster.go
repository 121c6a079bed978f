package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/charity-faceoff/internal/services"
)

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster [file]",
		Short: "Validate a team roster file and print what would be seeded",
		Long: `Without a file the built-in roster is printed. Seeding only inserts
teams that do not exist yet; existing totals are never changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teams := services.DefaultRoster(time.Now().UTC())
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if teams, err = services.LoadRoster(f); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, t := range teams {
				fmt.Fprintf(out, "%-20s %-24s %-28s %d\n", t.ID, t.Name, t.CharityName, t.DonationTotal)
			}
			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
