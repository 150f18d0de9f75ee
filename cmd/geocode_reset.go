package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset failed geocodes for retry",
	Long:  "Transitions every failed permit back to pending and clears its coordinates so the next geocode run re-attempts it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		n, err := store.ResetFailedGeocodes(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode reset: reset failed")
		}

		fmt.Printf("Reset %d failed geocodes to pending\n", n)
		return nil
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeResetCmd)
}
