package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show permit store statistics",
	Long:  "Displays total record count, counts by permit type, and counts by scrape date for the most recent week.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		stats, err := store.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats: aggregate")
		}

		fmt.Printf("Total permits: %d\n", stats.Total)

		if len(stats.ByType) > 0 {
			fmt.Println("\nPermits by type:")
			for _, tc := range stats.ByType {
				fmt.Printf("  %-20s %d\n", tc.PermitType, tc.Count)
			}
		}

		if len(stats.RecentScrapes) > 0 {
			fmt.Println("\nRecent scrapes:")
			for _, dc := range stats.RecentScrapes {
				fmt.Printf("  %s  %d permits\n", dc.Date, dc.Count)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
