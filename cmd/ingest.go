package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/permit-finder/permit-cli/internal/permit"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json>",
	Short: "Ingest raw permit records from a JSON file",
	Long:  "Reads an array of raw field maps produced by a source extractor, splits them into canonical fields plus extension data, normalizes dates, and upserts each record keyed by permit number.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "ingest: read %s", args[0])
		}

		var rawRecords []map[string]any
		if err := json.Unmarshal(data, &rawRecords); err != nil {
			return eris.Wrapf(err, "ingest: parse %s", args[0])
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		ingestor := permit.NewIngestor(store, cfg.Ingest.SourceCity, cfg.Ingest.Concurrency)
		summary := ingestor.Ingest(ctx, rawRecords)

		fmt.Printf("Ingested %d of %d records\n", summary.Saved, summary.Attempted)

		types := make([]string, 0, len(summary.ByType))
		for t := range summary.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-20s %d\n", t, summary.ByType[t])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
