package permit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestSummary reports a batch ingest outcome. A bad record lowers Saved,
// it never fails the batch.
type IngestSummary struct {
	Attempted int            `json:"attempted"`
	Saved     int            `json:"saved"`
	ByType    map[string]int `json:"by_type"`
}

// Ingestor turns raw source field maps into canonical records and upserts
// them, bounded-concurrently since records are independent.
type Ingestor struct {
	store       Store
	sourceCity  string
	concurrency int
}

// NewIngestor creates an Ingestor. sourceCity is applied to records whose
// source did not name a jurisdiction.
func NewIngestor(store Store, sourceCity string, concurrency int) *Ingestor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingestor{store: store, sourceCity: sourceCity, concurrency: concurrency}
}

// Ingest splits, normalizes, and upserts every raw record. Records without a
// permit_number and records whose write fails are logged and skipped; the
// rest of the batch proceeds.
func (in *Ingestor) Ingest(ctx context.Context, rawRecords []map[string]any) IngestSummary {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("ingest_run", runID))

	summary := IngestSummary{Attempted: len(rawRecords), ByType: make(map[string]int)}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	for _, raw := range rawRecords {
		g.Go(func() error {
			rec, ext := SplitFields(raw)
			rec.Extension = ext
			if rec.SourceCity == "" {
				rec.SourceCity = in.sourceCity
			}

			if rec.PermitNumber == "" {
				log.Warn("ingest: record missing permit_number, skipped")
				return nil
			}

			if _, err := in.store.Upsert(gCtx, rec); err != nil {
				log.Warn("ingest: upsert failed",
					zap.String("permit_number", rec.PermitNumber),
					zap.Error(err),
				)
				return nil //nolint:nilerr // one bad record never blocks the batch
			}

			mu.Lock()
			summary.Saved++
			summary.ByType[typeOrUnknown(rec.PermitType)]++
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	log.Info("ingest complete",
		zap.Int("attempted", summary.Attempted),
		zap.Int("saved", summary.Saved),
	)
	return summary
}

func typeOrUnknown(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}
