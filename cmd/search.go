package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search permit work descriptions",
	Long:  "Runs relevance-ranked full-text search over permit work descriptions.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		records, err := store.SearchDescriptions(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "search: query")
		}

		printPermits(records)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum records to return (default 50)")
	rootCmd.AddCommand(searchCmd)
}
