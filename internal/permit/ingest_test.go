package permit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_SavesRecords(t *testing.T) {
	store := newTestSQLiteStore(t)
	in := NewIngestor(store, "Vancouver", 2)

	summary := in.Ingest(context.Background(), []map[string]any{
		{
			"permit_number":    "BP-2026-001",
			"permit_type":      "building",
			"application_date": "Feb 01, 2026",
			"primary_location": "123 Main St",
			"inspector_name":   "J. Chen",
		},
		{
			"permit_number": "DP-2026-001",
			"permit_type":   "demolition",
		},
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, map[string]int{"building": 1, "demolition": 1}, summary.ByType)

	rec, err := store.GetByNumber(context.Background(), "BP-2026-001")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2026-02-01", rec.ApplicationDate)
	assert.Equal(t, "Vancouver", rec.SourceCity)
	assert.Equal(t, map[string]any{"inspector_name": "J. Chen"}, rec.Extension)
}

func TestIngest_SkipsRecordsWithoutPermitNumber(t *testing.T) {
	store := newTestSQLiteStore(t)
	in := NewIngestor(store, "Vancouver", 1)

	summary := in.Ingest(context.Background(), []map[string]any{
		{"permit_type": "building", "status": "Issued"},
		{"permit_number": "BP-1"},
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Saved)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestIngest_SourceCityPreserved(t *testing.T) {
	store := newTestSQLiteStore(t)
	in := NewIngestor(store, "Vancouver", 1)

	in.Ingest(context.Background(), []map[string]any{
		{"permit_number": "BP-1", "source_city": "Richmond"},
	})

	rec, err := store.GetByNumber(context.Background(), "BP-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Richmond", rec.SourceCity)
}

func TestIngest_UntypedRecordsCountedAsUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)
	in := NewIngestor(store, "Vancouver", 1)

	summary := in.Ingest(context.Background(), []map[string]any{
		{"permit_number": "BP-1"},
	})

	assert.Equal(t, map[string]int{"unknown": 1}, summary.ByType)
}

func TestIngest_RepeatBatchIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	in := NewIngestor(store, "Vancouver", 2)

	batch := []map[string]any{
		{"permit_number": "BP-1", "permit_type": "building"},
		{"permit_number": "BP-2", "permit_type": "building"},
	}

	first := in.Ingest(context.Background(), batch)
	second := in.Ingest(context.Background(), batch)

	assert.Equal(t, 2, first.Saved)
	assert.Equal(t, 2, second.Saved)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}
