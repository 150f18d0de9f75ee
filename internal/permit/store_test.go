package permit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permit-finder/permit-cli/internal/model"
)

func strPtr(s string) *string { return &s }

var permitColumnNames = []string{
	"id", "permit_number", "permit_type", "status", "list_status",
	"application_date", "issue_date", "completed_date",
	"list_created_date", "list_issue_date", "list_completed_date",
	"primary_location", "specific_location", "list_location",
	"parcel_id", "parcel_address", "folio_number",
	"work_description", "type_of_work", "contractors", "url",
	"source_city", "extension", "latitude", "longitude", "geocode_status",
	"scraped_at", "updated_at",
}

func TestUpsert_InsertsAndReturnsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO permits`).
		WithArgs(
			"BP-2026-001", "building", nil, nil,
			nil, nil, nil, nil, nil, nil,
			"123 Main St", nil, nil, nil, nil, nil,
			nil, nil, nil, nil, "Vancouver", []byte(`{}`),
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	store := NewPostgresStore(mock)
	id, err := store.Upsert(context.Background(), model.PermitRecord{
		PermitNumber:    "BP-2026-001",
		PermitType:      "building",
		PrimaryLocation: "123 Main St",
		SourceCity:      "Vancouver",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_SameKeyReturnsSameID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`INSERT INTO permits`).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	}

	store := NewPostgresStore(mock)
	first, err := store.Upsert(context.Background(), model.PermitRecord{PermitNumber: "BP-2026-002"})
	require.NoError(t, err)
	second, err := store.Upsert(context.Background(), model.PermitRecord{PermitNumber: "BP-2026-002", Status: "Issued"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_MissingPermitNumber(t *testing.T) {
	store := NewPostgresStore(nil)
	_, err := store.Upsert(context.Background(), model.PermitRecord{Status: "Issued"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permit_number is required")
}

func TestUpsert_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO permits`).
		WillReturnError(fmt.Errorf("connection refused"))

	store := NewPostgresStore(mock)
	_, err = store.Upsert(context.Background(), model.PermitRecord{PermitNumber: "BP-2026-003"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert permit BP-2026-003")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByNumber_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	scraped := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM permits WHERE permit_number`).
		WithArgs("BP-2026-001").
		WillReturnRows(pgxmock.NewRows(permitColumnNames).AddRow(
			int64(7), "BP-2026-001", strPtr("building"), strPtr("Issued"), nil,
			&appDate, nil, nil,
			nil, nil, nil,
			strPtr("123 Main St"), nil, nil,
			nil, nil, nil,
			strPtr("New single family dwelling"), nil, nil, nil,
			strPtr("Vancouver"), []byte(`{"inspector_name":"J. Chen"}`), nil, nil, "pending",
			scraped, scraped,
		))

	store := NewPostgresStore(mock)
	rec, err := store.GetByNumber(context.Background(), "BP-2026-001")

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, "building", rec.PermitType)
	assert.Equal(t, "2026-01-10", rec.ApplicationDate)
	assert.Empty(t, rec.IssueDate)
	assert.Equal(t, "Vancouver", rec.SourceCity)
	assert.Equal(t, model.GeocodePending, rec.GeocodeStatus)
	assert.Equal(t, map[string]any{"inspector_name": "J. Chen"}, rec.Extension)
	assert.Nil(t, rec.Latitude)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByNumber_Absent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM permits WHERE permit_number`).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)
	rec, err := store.GetByNumber(context.Background(), "NOPE")

	require.NoError(t, err)
	assert.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_DefaultLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM permits WHERE 1=1 ORDER BY scraped_at DESC, id DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(pgxmock.NewRows(permitColumnNames))

	store := NewPostgresStore(mock)
	records, err := store.List(context.Background(), Filter{})

	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_TypeAndSearchFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scraped := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM permits WHERE 1=1 AND permit_type = \$1 AND \(work_description ILIKE \$2 OR primary_location ILIKE \$2\)`).
		WithArgs("building", "%deck%", 10, 0).
		WillReturnRows(pgxmock.NewRows(permitColumnNames).AddRow(
			int64(3), "BP-2026-009", strPtr("building"), nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			strPtr("Rear deck addition"), nil, nil, nil,
			nil, []byte(`{}`), nil, nil, "pending",
			scraped, scraped,
		))

	store := NewPostgresStore(mock)
	records, err := store.List(context.Background(), Filter{PermitType: "building", Search: "deck", Limit: 10})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BP-2026-009", records[0].PermitNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchDescriptions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scraped := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`plainto_tsquery`).
		WithArgs("demolition", 50).
		WillReturnRows(pgxmock.NewRows(permitColumnNames).AddRow(
			int64(5), "DP-2026-001", strPtr("demolition"), nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			strPtr("Full demolition of garage"), nil, nil, nil,
			nil, []byte(`{}`), nil, nil, "pending",
			scraped, scraped,
		))

	store := NewPostgresStore(mock)
	records, err := store.SearchDescriptions(context.Background(), "demolition", 0)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DP-2026-001", records[0].PermitNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permits`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`GROUP BY permit_type`).
		WillReturnRows(pgxmock.NewRows([]string{"permit_type", "count"}).
			AddRow("building", 8).
			AddRow("demolition", 4))
	mock.ExpectQuery(`GROUP BY DATE\(scraped_at\)`).
		WillReturnRows(pgxmock.NewRows([]string{"date", "count"}).
			AddRow("2026-08-29", 12))

	store := NewPostgresStore(mock)
	stats, err := store.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, stats.Total)
	require.Len(t, stats.ByType, 2)
	assert.Equal(t, model.TypeCount{PermitType: "building", Count: 8}, stats.ByType[0])
	require.Len(t, stats.RecentScrapes, 1)
	assert.Equal(t, "2026-08-29", stats.RecentScrapes[0].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeocodeStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`GROUP BY geocode_status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("success", 9).
			AddRow("pending", 2).
			AddRow("failed", 1))

	store := NewPostgresStore(mock)
	counts, err := store.GeocodeStats(context.Background())

	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, model.GeocodeCount{Status: "success", Count: 9}, counts[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectPendingGeocode_NoLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE \(geocode_status = 'pending' OR geocode_status IS NULL\)`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "permit_number", "primary_location", "specific_location", "source_city"}).
			AddRow(int64(1), "BP-1", "123 Main St", "", "Vancouver").
			AddRow(int64(2), "BP-2", "", "456 Oak Ave", "Richmond"))

	store := NewPostgresStore(mock)
	pending, err := store.SelectPendingGeocode(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "123 Main St", pending[0].PrimaryLocation)
	assert.Equal(t, "456 Oak Ave", pending[1].SpecificLocation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectPendingGeocode_Limit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`ORDER BY id LIMIT \$1`).
		WithArgs(25).
		WillReturnRows(pgxmock.NewRows([]string{"id", "permit_number", "primary_location", "specific_location", "source_city"}))

	store := NewPostgresStore(mock)
	pending, err := store.SelectPendingGeocode(context.Background(), 25)

	require.NoError(t, err)
	assert.Empty(t, pending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyGeocodeUpdates_MixedBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SET latitude = \$1, longitude = \$2, geocode_status = 'success'`).
		WithArgs(49.2827, -123.1207, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`SET geocode_status = 'failed'`).
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	store := NewPostgresStore(mock)
	err = store.ApplyGeocodeUpdates(context.Background(), []GeocodeUpdate{
		{ID: 1, Status: model.GeocodeSuccess, Latitude: 49.2827, Longitude: -123.1207},
		{ID: 2, Status: model.GeocodeFailed},
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyGeocodeUpdates_Empty(t *testing.T) {
	store := NewPostgresStore(nil)
	err := store.ApplyGeocodeUpdates(context.Background(), nil)
	require.NoError(t, err)
}

func TestApplyGeocodeUpdates_ExecErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SET geocode_status = 'failed'`).
		WithArgs(int64(9)).
		WillReturnError(fmt.Errorf("connection lost"))
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	err = store.ApplyGeocodeUpdates(context.Background(), []GeocodeUpdate{
		{ID: 9, Status: model.GeocodeFailed},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply geocode update for id 9")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyGeocodeUpdates_CommitError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SET geocode_status = 'failed'`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit().WillReturnError(fmt.Errorf("commit failed"))

	store := NewPostgresStore(mock)
	err = store.ApplyGeocodeUpdates(context.Background(), []GeocodeUpdate{
		{ID: 3, Status: model.GeocodeFailed},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit geocode batch")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFailedGeocodes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SET geocode_status = 'pending', latitude = NULL, longitude = NULL`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	store := NewPostgresStore(mock)
	n, err := store.ResetFailedGeocodes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS permits`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store := NewPostgresStore(mock)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
