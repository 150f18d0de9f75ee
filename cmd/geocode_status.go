package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocoding statistics",
	Long:  "Displays permit counts grouped by geocode status.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		counts, err := store.GeocodeStats(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode status: aggregate")
		}

		fmt.Println("Geocoding statistics:")
		for _, gc := range counts {
			fmt.Printf("  %-10s %d\n", gc.Status, gc.Count)
		}

		return nil
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeStatusCmd)
}
