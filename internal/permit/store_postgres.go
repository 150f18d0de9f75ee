package permit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/permit-finder/permit-cli/internal/db"
	"github.com/permit-finder/permit-cli/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgresStore creates a PostgresStore on an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgres connects a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS permits (
	id                  BIGSERIAL PRIMARY KEY,
	permit_number       TEXT NOT NULL UNIQUE,
	permit_type         TEXT,
	status              TEXT,
	list_status         TEXT,
	application_date    DATE,
	issue_date          DATE,
	completed_date      DATE,
	list_created_date   DATE,
	list_issue_date     DATE,
	list_completed_date DATE,
	primary_location    TEXT,
	specific_location   TEXT,
	list_location       TEXT,
	parcel_id           TEXT,
	parcel_address      TEXT,
	folio_number        TEXT,
	work_description    TEXT,
	type_of_work        TEXT,
	contractors         TEXT,
	url                 TEXT,
	source_city         TEXT,
	extension           JSONB NOT NULL DEFAULT '{}',
	latitude            DOUBLE PRECISION,
	longitude           DOUBLE PRECISION,
	geocode_status      TEXT NOT NULL DEFAULT 'pending',
	scraped_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_permits_type ON permits(permit_type);
CREATE INDEX IF NOT EXISTS idx_permits_scraped_at ON permits(scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_permits_geocode_status ON permits(geocode_status);
CREATE INDEX IF NOT EXISTS idx_permits_description_fts
	ON permits USING gin (to_tsvector('english', COALESCE(work_description, '')));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	} else {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Upsert inserts or fully replaces the record keyed by permit_number.
// Re-scraping always yields a complete snapshot, so last-write-wins at record
// granularity; geocode columns are left untouched on conflict so enrichment
// survives a re-scrape.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.PermitRecord) (int64, error) {
	if rec.PermitNumber == "" {
		return 0, eris.New("postgres: upsert: permit_number is required")
	}

	extJSON, err := json.Marshal(nonNilExt(rec.Extension))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: marshal extension for %s", rec.PermitNumber)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO permits (
			permit_number, permit_type, status, list_status,
			application_date, issue_date, completed_date,
			list_created_date, list_issue_date, list_completed_date,
			primary_location, specific_location, list_location,
			parcel_id, parcel_address, folio_number,
			work_description, type_of_work, contractors, url,
			source_city, extension
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (permit_number) DO UPDATE SET
			permit_type = EXCLUDED.permit_type,
			status = EXCLUDED.status,
			list_status = EXCLUDED.list_status,
			application_date = EXCLUDED.application_date,
			issue_date = EXCLUDED.issue_date,
			completed_date = EXCLUDED.completed_date,
			list_created_date = EXCLUDED.list_created_date,
			list_issue_date = EXCLUDED.list_issue_date,
			list_completed_date = EXCLUDED.list_completed_date,
			primary_location = EXCLUDED.primary_location,
			specific_location = EXCLUDED.specific_location,
			list_location = EXCLUDED.list_location,
			parcel_id = EXCLUDED.parcel_id,
			parcel_address = EXCLUDED.parcel_address,
			folio_number = EXCLUDED.folio_number,
			work_description = EXCLUDED.work_description,
			type_of_work = EXCLUDED.type_of_work,
			contractors = EXCLUDED.contractors,
			url = EXCLUDED.url,
			source_city = EXCLUDED.source_city,
			extension = EXCLUDED.extension,
			updated_at = now()
		RETURNING id`,
		rec.PermitNumber, nilIfEmpty(rec.PermitType), nilIfEmpty(rec.Status), nilIfEmpty(rec.ListStatus),
		nilIfEmpty(rec.ApplicationDate), nilIfEmpty(rec.IssueDate), nilIfEmpty(rec.CompletedDate),
		nilIfEmpty(rec.ListCreatedDate), nilIfEmpty(rec.ListIssueDate), nilIfEmpty(rec.ListCompletedDate),
		nilIfEmpty(rec.PrimaryLocation), nilIfEmpty(rec.SpecificLocation), nilIfEmpty(rec.ListLocation),
		nilIfEmpty(rec.ParcelID), nilIfEmpty(rec.ParcelAddress), nilIfEmpty(rec.FolioNumber),
		nilIfEmpty(rec.WorkDescription), nilIfEmpty(rec.TypeOfWork), nilIfEmpty(rec.Contractors), nilIfEmpty(rec.URL),
		nilIfEmpty(rec.SourceCity), extJSON,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert permit %s", rec.PermitNumber)
	}
	return id, nil
}

const permitColumns = `
	id, permit_number, permit_type, status, list_status,
	application_date, issue_date, completed_date,
	list_created_date, list_issue_date, list_completed_date,
	primary_location, specific_location, list_location,
	parcel_id, parcel_address, folio_number,
	work_description, type_of_work, contractors, url,
	source_city, extension, latitude, longitude, geocode_status,
	scraped_at, updated_at`

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPermit reads one permit row in permitColumns order.
func scanPermit(row rowScanner) (*model.PermitRecord, error) {
	var rec model.PermitRecord
	var permitType, status, listStatus *string
	var appDate, issueDate, completedDate, listCreated, listIssue, listCompleted *time.Time
	var primaryLoc, specificLoc, listLoc *string
	var parcelID, parcelAddr, folio *string
	var workDesc, typeOfWork, contractors, recURL, sourceCity *string
	var extJSON []byte
	var geocodeStatus string

	err := row.Scan(
		&rec.ID, &rec.PermitNumber, &permitType, &status, &listStatus,
		&appDate, &issueDate, &completedDate,
		&listCreated, &listIssue, &listCompleted,
		&primaryLoc, &specificLoc, &listLoc,
		&parcelID, &parcelAddr, &folio,
		&workDesc, &typeOfWork, &contractors, &recURL,
		&sourceCity, &extJSON, &rec.Latitude, &rec.Longitude, &geocodeStatus,
		&rec.ScrapedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.PermitType = deref(permitType)
	rec.Status = deref(status)
	rec.ListStatus = deref(listStatus)
	rec.ApplicationDate = dateString(appDate)
	rec.IssueDate = dateString(issueDate)
	rec.CompletedDate = dateString(completedDate)
	rec.ListCreatedDate = dateString(listCreated)
	rec.ListIssueDate = dateString(listIssue)
	rec.ListCompletedDate = dateString(listCompleted)
	rec.PrimaryLocation = deref(primaryLoc)
	rec.SpecificLocation = deref(specificLoc)
	rec.ListLocation = deref(listLoc)
	rec.ParcelID = deref(parcelID)
	rec.ParcelAddress = deref(parcelAddr)
	rec.FolioNumber = deref(folio)
	rec.WorkDescription = deref(workDesc)
	rec.TypeOfWork = deref(typeOfWork)
	rec.Contractors = deref(contractors)
	rec.URL = deref(recURL)
	rec.SourceCity = deref(sourceCity)
	rec.GeocodeStatus = model.GeocodeStatus(geocodeStatus)

	if len(extJSON) > 0 {
		if err := json.Unmarshal(extJSON, &rec.Extension); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal extension for %s", rec.PermitNumber)
		}
	}
	return &rec, nil
}

// GetByNumber returns the permit with the given business key, or nil if absent.
func (s *PostgresStore) GetByNumber(ctx context.Context, permitNumber string) (*model.PermitRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+permitColumns+` FROM permits WHERE permit_number = $1`,
		permitNumber,
	)
	rec, err := scanPermit(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get permit %s", permitNumber)
	}
	return rec, nil
}

// List returns permits matching the filter, newest-first with id as the
// tie-break for stable pagination.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]model.PermitRecord, error) {
	sql := `SELECT ` + permitColumns + ` FROM permits WHERE 1=1`
	var args []any

	if filter.PermitType != "" {
		args = append(args, filter.PermitType)
		sql += ` AND permit_type = $` + itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := itoa(len(args))
		sql += ` AND (work_description ILIKE $` + n + ` OR primary_location ILIKE $` + n + `)`
	}

	sql += ` ORDER BY scraped_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	sql += ` LIMIT $` + itoa(len(args))
	args = append(args, filter.Offset)
	sql += ` OFFSET $` + itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list permits")
	}
	defer rows.Close()

	var records []model.PermitRecord
	for rows.Next() {
		rec, err := scanPermit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan permit")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate permits")
}

// SearchDescriptions runs full-text relevance search over work descriptions.
func (s *PostgresStore) SearchDescriptions(ctx context.Context, query string, limit int) ([]model.PermitRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+permitColumns+`
		FROM permits
		WHERE to_tsvector('english', COALESCE(work_description, ''))
			@@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', COALESCE(work_description, '')),
			plainto_tsquery('english', $1)) DESC
		LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search descriptions")
	}
	defer rows.Close()

	var records []model.PermitRecord
	for rows.Next() {
		rec, err := scanPermit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search result")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate search results")
}

// Stats aggregates totals, counts by type, and counts by scrape date for the
// most recent week.
func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permits`).Scan(&stats.Total); err != nil {
		return nil, eris.Wrap(err, "postgres: count permits")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(permit_type, 'unknown'), COUNT(*)
		FROM permits
		GROUP BY permit_type
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by type")
	}
	defer rows.Close()
	for rows.Next() {
		var tc model.TypeCount
		if err := rows.Scan(&tc.PermitType, &tc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan type count")
		}
		stats.ByType = append(stats.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate type counts")
	}

	dayRows, err := s.pool.Query(ctx, `
		SELECT DATE(scraped_at)::text, COUNT(*)
		FROM permits
		GROUP BY DATE(scraped_at)
		ORDER BY DATE(scraped_at) DESC
		LIMIT 7`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by day")
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var dc model.DayCount
		if err := dayRows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan day count")
		}
		stats.RecentScrapes = append(stats.RecentScrapes, dc)
	}
	return stats, eris.Wrap(dayRows.Err(), "postgres: iterate day counts")
}

// GeocodeStats returns permit counts grouped by geocode status.
func (s *PostgresStore) GeocodeStats(ctx context.Context) ([]model.GeocodeCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(geocode_status, 'pending'), COUNT(*)
		FROM permits
		GROUP BY geocode_status
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: geocode stats")
	}
	defer rows.Close()

	var counts []model.GeocodeCount
	for rows.Next() {
		var gc model.GeocodeCount
		if err := rows.Scan(&gc.Status, &gc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan geocode count")
		}
		counts = append(counts, gc)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate geocode counts")
}

// SelectPendingGeocode returns records awaiting enrichment that carry at
// least one location field. A NULL status counts as pending.
func (s *PostgresStore) SelectPendingGeocode(ctx context.Context, limit int) ([]PendingGeocode, error) {
	sql := `
		SELECT id, permit_number,
			COALESCE(primary_location, ''), COALESCE(specific_location, ''),
			COALESCE(source_city, '')
		FROM permits
		WHERE (geocode_status = 'pending' OR geocode_status IS NULL)
		AND (primary_location IS NOT NULL OR specific_location IS NOT NULL)
		ORDER BY id`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		sql += ` LIMIT $1`
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: select pending geocode")
	}
	defer rows.Close()

	var pending []PendingGeocode
	for rows.Next() {
		var p PendingGeocode
		if err := rows.Scan(&p.ID, &p.PermitNumber, &p.PrimaryLocation, &p.SpecificLocation, &p.SourceCity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending geocode")
		}
		pending = append(pending, p)
	}
	return pending, eris.Wrap(rows.Err(), "postgres: iterate pending geocode")
}

// ApplyGeocodeUpdates commits a batch of enrichment outcomes in one
// transaction. The batch is the crash-safety unit: a failure here leaves all
// of its records pending for the next run.
func (s *PostgresStore) ApplyGeocodeUpdates(ctx context.Context, updates []GeocodeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin geocode batch")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, u := range updates {
		if u.Status == model.GeocodeSuccess {
			_, err = tx.Exec(ctx, `
				UPDATE permits
				SET latitude = $1, longitude = $2, geocode_status = 'success', updated_at = now()
				WHERE id = $3`,
				u.Latitude, u.Longitude, u.ID,
			)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE permits
				SET geocode_status = 'failed', updated_at = now()
				WHERE id = $1`,
				u.ID,
			)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: apply geocode update for id %d", u.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit geocode batch")
}

// ResetFailedGeocodes transitions every failed record back to pending and
// clears its coordinates so enrichment can be re-attempted.
func (s *PostgresStore) ResetFailedGeocodes(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE permits
		SET geocode_status = 'pending', latitude = NULL, longitude = NULL, updated_at = now()
		WHERE geocode_status = 'failed'`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset failed geocodes")
	}
	n := tag.RowsAffected()
	zap.L().Info("reset failed geocodes", zap.Int64("count", n))
	return n, nil
}
