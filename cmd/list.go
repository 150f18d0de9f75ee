package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/permit-finder/permit-cli/internal/model"
	"github.com/permit-finder/permit-cli/internal/permit"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List permits, newest first",
	Long:  "Lists permits ordered by scrape time, optionally filtered by permit type or a substring match over descriptions and locations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		permitType, _ := cmd.Flags().GetString("type")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		records, err := store.List(ctx, permit.Filter{
			PermitType: permitType,
			Search:     search,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return eris.Wrap(err, "list: query")
		}

		printPermits(records)
		return nil
	},
}

func printPermits(records []model.PermitRecord) {
	if len(records) == 0 {
		fmt.Println("No permits found")
		return
	}
	for _, rec := range records {
		loc := rec.PrimaryLocation
		if loc == "" {
			loc = rec.SpecificLocation
		}
		fmt.Printf("%-20s %-12s %-10s %s\n", rec.PermitNumber, rec.PermitType, rec.Status, loc)
		if rec.WorkDescription != "" {
			fmt.Printf("    %s\n", rec.WorkDescription)
		}
	}
	fmt.Printf("\n%d permits\n", len(records))
}

func init() {
	listCmd.Flags().String("type", "", "filter by permit type")
	listCmd.Flags().String("search", "", "substring match over descriptions and locations")
	listCmd.Flags().Int("limit", 0, "maximum records to return (default 100)")
	listCmd.Flags().Int("offset", 0, "records to skip for pagination")
	rootCmd.AddCommand(listCmd)
}
