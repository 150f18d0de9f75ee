package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <permit-number>",
	Short: "Show one permit record",
	Long:  "Prints the full canonical record for a permit number, extension fields and geocode state included.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		rec, err := store.GetByNumber(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "show: get %s", args[0])
		}
		if rec == nil {
			fmt.Printf("Permit %s not found\n", args[0])
			return nil
		}

		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return eris.Wrap(err, "show: marshal record")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
