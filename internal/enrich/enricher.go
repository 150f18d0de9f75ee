// Package enrich drives geocoding enrichment over pending permit records.
package enrich

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/permit-finder/permit-cli/internal/model"
	"github.com/permit-finder/permit-cli/internal/permit"
	"github.com/permit-finder/permit-cli/pkg/geocode"
)

// Summary reports one enrichment run.
type Summary struct {
	Attempted int `json:"attempted"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// Enricher selects records needing coordinates, resolves their addresses, and
// commits status updates in batches. The batch is the crash-safety unit: an
// interrupted run leaves committed batches enriched and the rest pending.
type Enricher struct {
	store       permit.Store
	client      geocode.Client
	defaultCity string
	batchSize   int
	concurrency int
}

// NewEnricher creates an Enricher. batchSize bounds each commit; concurrency
// bounds how many lookups are in flight (the client's shared limiter still
// serializes actual network requests).
func NewEnricher(store permit.Store, client geocode.Client, defaultCity string, batchSize, concurrency int) *Enricher {
	if batchSize <= 0 {
		batchSize = 50
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Enricher{
		store:       store,
		client:      client,
		defaultCity: defaultCity,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// EnrichPending geocodes every record whose status is pending (or unset) and
// which carries at least one location field. Records with no plausible street
// address are failed without touching the network.
func (e *Enricher) EnrichPending(ctx context.Context) (Summary, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("enrich_run", runID))

	pending, err := e.store.SelectPendingGeocode(ctx, 0)
	if err != nil {
		return Summary{}, eris.Wrap(err, "enrich: select pending")
	}

	log.Info("starting enrichment",
		zap.Int("pending", len(pending)),
		zap.Int("batch_size", e.batchSize),
	)

	var summary Summary
	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		batchSummary, err := e.processBatch(ctx, log, pending[start:end])
		summary.Attempted += batchSummary.Attempted
		summary.Success += batchSummary.Success
		summary.Failed += batchSummary.Failed
		if err != nil {
			// A failed commit leaves this batch pending for the next run;
			// stop here rather than burn lookups we cannot persist.
			return summary, err
		}

		log.Info("committed batch",
			zap.Int("processed", summary.Attempted),
			zap.Int("total", len(pending)),
		)
	}

	log.Info("enrichment complete",
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// processBatch resolves one batch concurrently and commits its updates in a
// single transaction.
func (e *Enricher) processBatch(ctx context.Context, log *zap.Logger, batch []permit.PendingGeocode) (Summary, error) {
	updates := make([]permit.GeocodeUpdate, len(batch))
	var mu sync.Mutex
	var success, failed int

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, rec := range batch {
		g.Go(func() error {
			update := e.resolveRecord(gCtx, log, rec)
			mu.Lock()
			updates[i] = update
			if update.Status == model.GeocodeSuccess {
				success++
			} else {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, eris.Wrap(err, "enrich: batch workers")
	}

	if err := e.store.ApplyGeocodeUpdates(ctx, updates); err != nil {
		return Summary{}, eris.Wrap(err, "enrich: commit batch")
	}

	return Summary{Attempted: len(batch), Success: success, Failed: failed}, nil
}

// resolveRecord applies the address selection policy and drives the lookup.
// Policy: primary location if it looks like a street address, else the
// specific location if it does, else fail immediately — no network call for
// data known to be unusable.
func (e *Enricher) resolveRecord(ctx context.Context, log *zap.Logger, rec permit.PendingGeocode) permit.GeocodeUpdate {
	address := ""
	switch {
	case geocode.IsStreetAddress(rec.PrimaryLocation):
		address = rec.PrimaryLocation
	case geocode.IsStreetAddress(rec.SpecificLocation):
		address = rec.SpecificLocation
		log.Debug("enrich: falling back to specific location",
			zap.String("permit_number", rec.PermitNumber),
			zap.String("address", address),
		)
	default:
		log.Debug("enrich: no usable address",
			zap.String("permit_number", rec.PermitNumber),
			zap.String("primary", rec.PrimaryLocation),
			zap.String("specific", rec.SpecificLocation),
		)
		return permit.GeocodeUpdate{ID: rec.ID, Status: model.GeocodeFailed}
	}

	city := rec.SourceCity
	if city == "" {
		city = e.defaultCity
	}

	cleaned := geocode.CleanAddress(address, city)
	if cleaned == "" {
		return permit.GeocodeUpdate{ID: rec.ID, Status: model.GeocodeFailed}
	}

	result, err := e.client.Resolve(ctx, cleaned, city)
	if err != nil || result == nil || !result.Matched {
		if err != nil {
			log.Warn("enrich: lookup error",
				zap.String("permit_number", rec.PermitNumber),
				zap.Error(err),
			)
		}
		return permit.GeocodeUpdate{ID: rec.ID, Status: model.GeocodeFailed}
	}

	return permit.GeocodeUpdate{
		ID:        rec.ID,
		Status:    model.GeocodeSuccess,
		Latitude:  result.Latitude,
		Longitude: result.Longitude,
	}
}

// ResetFailed transitions every failed record back to pending and clears its
// coordinates so a later run can re-attempt them.
func (e *Enricher) ResetFailed(ctx context.Context) (int64, error) {
	n, err := e.store.ResetFailedGeocodes(ctx)
	return n, eris.Wrap(err, "enrich: reset failed")
}
