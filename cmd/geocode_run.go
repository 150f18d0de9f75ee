package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/permit-finder/permit-cli/internal/enrich"
	"github.com/permit-finder/permit-cli/pkg/geocode"
)

var geocodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Geocode pending permits",
	Long:  "Selects permits whose geocode status is pending, resolves their addresses through the rate-limited lookup provider, and commits coordinates in batches.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		delay, _ := cmd.Flags().GetFloat64("delay")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if batchSize <= 0 {
			batchSize = cfg.Geocode.BatchSize
		}
		rps := cfg.Geocode.RequestsPerSec
		if delay > 0 {
			rps = 1.0 / delay
		}

		region := geocode.Region{
			City:        cfg.Geocode.City,
			Province:    cfg.Geocode.Province,
			Country:     cfg.Geocode.Country,
			CountryCode: cfg.Geocode.CountryCode,
		}
		bounds := geocode.BoundingBox{
			MinLat: cfg.Geocode.Bounds.MinLat,
			MaxLat: cfg.Geocode.Bounds.MaxLat,
			MinLon: cfg.Geocode.Bounds.MinLon,
			MaxLon: cfg.Geocode.Bounds.MaxLon,
		}

		client := geocode.NewClient(region, bounds, geocode.NewCache(),
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithRateLimit(rps),
			geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs)*time.Second),
		)

		enricher := enrich.NewEnricher(store, client, cfg.Geocode.City, batchSize, cfg.Geocode.Concurrency)

		zap.L().Info("starting geocode run",
			zap.Int("batch_size", batchSize),
			zap.Float64("requests_per_sec", rps),
		)

		summary, err := enricher.EnrichPending(ctx)

		fmt.Println("Geocoding complete")
		fmt.Printf("  Attempted: %d\n", summary.Attempted)
		fmt.Printf("  Success:   %d\n", summary.Success)
		fmt.Printf("  Failed:    %d\n", summary.Failed)

		return err
	},
}

func init() {
	geocodeRunCmd.Flags().Int("batch-size", 0, "records per commit batch (default from config)")
	geocodeRunCmd.Flags().Float64("delay", 0, "seconds between lookup requests (overrides requests_per_sec)")
	geocodeCmd.AddCommand(geocodeRunCmd)
}
