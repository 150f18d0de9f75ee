package permit

import (
	"context"

	"github.com/permit-finder/permit-cli/internal/model"
)

// Filter specifies criteria for listing permits.
type Filter struct {
	PermitType string `json:"permit_type,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// PendingGeocode is a record selected for enrichment: the business key plus
// the location fields the address policy chooses between.
type PendingGeocode struct {
	ID               int64
	PermitNumber     string
	PrimaryLocation  string
	SpecificLocation string
	SourceCity       string
}

// GeocodeUpdate carries one record's enrichment outcome back to the store.
type GeocodeUpdate struct {
	ID        int64
	Status    model.GeocodeStatus
	Latitude  float64
	Longitude float64
}

// Store defines the persistence interface for the canonical permit table.
type Store interface {
	// Upsert inserts or fully replaces the record keyed by permit_number and
	// returns the persisted row id.
	Upsert(ctx context.Context, rec model.PermitRecord) (int64, error)

	// Queries
	GetByNumber(ctx context.Context, permitNumber string) (*model.PermitRecord, error)
	List(ctx context.Context, filter Filter) ([]model.PermitRecord, error)
	SearchDescriptions(ctx context.Context, query string, limit int) ([]model.PermitRecord, error)
	Stats(ctx context.Context) (*model.Stats, error)
	GeocodeStats(ctx context.Context) ([]model.GeocodeCount, error)

	// Enrichment
	SelectPendingGeocode(ctx context.Context, limit int) ([]PendingGeocode, error)
	ApplyGeocodeUpdates(ctx context.Context, updates []GeocodeUpdate) error
	ResetFailedGeocodes(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
