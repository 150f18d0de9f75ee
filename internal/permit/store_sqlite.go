package permit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/permit-finder/permit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// single-machine deployments. Dates are kept as TEXT in canonical YYYY-MM-DD
// form; description search degrades to LIKE since there is no tsvector here.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS permits (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	permit_number       TEXT NOT NULL UNIQUE,
	permit_type         TEXT,
	status              TEXT,
	list_status         TEXT,
	application_date    TEXT,
	issue_date          TEXT,
	completed_date      TEXT,
	list_created_date   TEXT,
	list_issue_date     TEXT,
	list_completed_date TEXT,
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
	extension           TEXT NOT NULL DEFAULT '{}',
	latitude            REAL,
	longitude           REAL,
	geocode_status      TEXT NOT NULL DEFAULT 'pending',
	scraped_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_permits_type ON permits(permit_type);
CREATE INDEX IF NOT EXISTS idx_permits_scraped_at ON permits(scraped_at);
CREATE INDEX IF NOT EXISTS idx_permits_geocode_status ON permits(geocode_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec model.PermitRecord) (int64, error) {
	if rec.PermitNumber == "" {
		return 0, eris.New("sqlite: upsert: permit_number is required")
	}

	extJSON, err := json.Marshal(nonNilExt(rec.Extension))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: marshal extension for %s", rec.PermitNumber)
	}

	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO permits (
			permit_number, permit_type, status, list_status,
			application_date, issue_date, completed_date,
			list_created_date, list_issue_date, list_completed_date,
			primary_location, specific_location, list_location,
			parcel_id, parcel_address, folio_number,
			work_description, type_of_work, contractors, url,
			source_city, extension, scraped_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (permit_number) DO UPDATE SET
			permit_type = excluded.permit_type,
			status = excluded.status,
			list_status = excluded.list_status,
			application_date = excluded.application_date,
			issue_date = excluded.issue_date,
			completed_date = excluded.completed_date,
			list_created_date = excluded.list_created_date,
			list_issue_date = excluded.list_issue_date,
			list_completed_date = excluded.list_completed_date,
			primary_location = excluded.primary_location,
			specific_location = excluded.specific_location,
			list_location = excluded.list_location,
			parcel_id = excluded.parcel_id,
			parcel_address = excluded.parcel_address,
			folio_number = excluded.folio_number,
			work_description = excluded.work_description,
			type_of_work = excluded.type_of_work,
			contractors = excluded.contractors,
			url = excluded.url,
			source_city = excluded.source_city,
			extension = excluded.extension,
			updated_at = excluded.updated_at
		RETURNING id`,
		rec.PermitNumber, nilIfEmpty(rec.PermitType), nilIfEmpty(rec.Status), nilIfEmpty(rec.ListStatus),
		nilIfEmpty(rec.ApplicationDate), nilIfEmpty(rec.IssueDate), nilIfEmpty(rec.CompletedDate),
		nilIfEmpty(rec.ListCreatedDate), nilIfEmpty(rec.ListIssueDate), nilIfEmpty(rec.ListCompletedDate),
		nilIfEmpty(rec.PrimaryLocation), nilIfEmpty(rec.SpecificLocation), nilIfEmpty(rec.ListLocation),
		nilIfEmpty(rec.ParcelID), nilIfEmpty(rec.ParcelAddress), nilIfEmpty(rec.FolioNumber),
		nilIfEmpty(rec.WorkDescription), nilIfEmpty(rec.TypeOfWork), nilIfEmpty(rec.Contractors), nilIfEmpty(rec.URL),
		nilIfEmpty(rec.SourceCity), string(extJSON), now, now,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert permit %s", rec.PermitNumber)
	}
	return id, nil
}

const sqlitePermitColumns = `
	id, permit_number, permit_type, status, list_status,
	application_date, issue_date, completed_date,
	list_created_date, list_issue_date, list_completed_date,
	primary_location, specific_location, list_location,
	parcel_id, parcel_address, folio_number,
	work_description, type_of_work, contractors, url,
	source_city, extension, latitude, longitude, geocode_status,
	scraped_at, updated_at`

// scanSQLitePermit reads one permit row in sqlitePermitColumns order.
func scanSQLitePermit(row rowScanner) (*model.PermitRecord, error) {
	var rec model.PermitRecord
	strs := make([]*string, 19) // nullable text columns in column order
	var sourceCity *string
	var extJSON string
	var geocodeStatus string

	err := row.Scan(
		&rec.ID, &rec.PermitNumber, &strs[0], &strs[1], &strs[2],
		&strs[3], &strs[4], &strs[5],
		&strs[6], &strs[7], &strs[8],
		&strs[9], &strs[10], &strs[11],
		&strs[12], &strs[13], &strs[14],
		&strs[15], &strs[16], &strs[17], &strs[18],
		&sourceCity, &extJSON, &rec.Latitude, &rec.Longitude, &geocodeStatus,
		&rec.ScrapedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.PermitType = deref(strs[0])
	rec.Status = deref(strs[1])
	rec.ListStatus = deref(strs[2])
	rec.ApplicationDate = deref(strs[3])
	rec.IssueDate = deref(strs[4])
	rec.CompletedDate = deref(strs[5])
	rec.ListCreatedDate = deref(strs[6])
	rec.ListIssueDate = deref(strs[7])
	rec.ListCompletedDate = deref(strs[8])
	rec.PrimaryLocation = deref(strs[9])
	rec.SpecificLocation = deref(strs[10])
	rec.ListLocation = deref(strs[11])
	rec.ParcelID = deref(strs[12])
	rec.ParcelAddress = deref(strs[13])
	rec.FolioNumber = deref(strs[14])
	rec.WorkDescription = deref(strs[15])
	rec.TypeOfWork = deref(strs[16])
	rec.Contractors = deref(strs[17])
	rec.URL = deref(strs[18])
	rec.SourceCity = deref(sourceCity)
	rec.GeocodeStatus = model.GeocodeStatus(geocodeStatus)

	if extJSON != "" {
		if err := json.Unmarshal([]byte(extJSON), &rec.Extension); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal extension for %s", rec.PermitNumber)
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) GetByNumber(ctx context.Context, permitNumber string) (*model.PermitRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePermitColumns+` FROM permits WHERE permit_number = ?`,
		permitNumber,
	)
	rec, err := scanSQLitePermit(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get permit %s", permitNumber)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.PermitRecord, error) {
	query := `SELECT ` + sqlitePermitColumns + ` FROM permits WHERE 1=1`
	var args []any

	if filter.PermitType != "" {
		query += ` AND permit_type = ?`
		args = append(args, filter.PermitType)
	}
	if filter.Search != "" {
		query += ` AND (work_description LIKE ? OR primary_location LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY scraped_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list permits")
	}
	defer rows.Close()

	var records []model.PermitRecord
	for rows.Next() {
		rec, err := scanSQLitePermit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan permit")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate permits")
}

// SearchDescriptions approximates relevance search with LIKE; SQLite has no
// tsvector, so newest matches come first instead of ranked matches.
func (s *SQLiteStore) SearchDescriptions(ctx context.Context, query string, limit int) ([]model.PermitRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqlitePermitColumns+`
		FROM permits
		WHERE work_description LIKE ?
		ORDER BY scraped_at DESC, id DESC
		LIMIT ?`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search descriptions")
	}
	defer rows.Close()

	var records []model.PermitRecord
	for rows.Next() {
		rec, err := scanSQLitePermit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search result")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate search results")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM permits`).Scan(&stats.Total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count permits")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(permit_type, 'unknown'), COUNT(*)
		FROM permits
		GROUP BY permit_type
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by type")
	}
	defer rows.Close()
	for rows.Next() {
		var tc model.TypeCount
		if err := rows.Scan(&tc.PermitType, &tc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan type count")
		}
		stats.ByType = append(stats.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate type counts")
	}

	dayRows, err := s.db.QueryContext(ctx, `
		SELECT date(scraped_at), COUNT(*)
		FROM permits
		GROUP BY date(scraped_at)
		ORDER BY date(scraped_at) DESC
		LIMIT 7`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by day")
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var dc model.DayCount
		if err := dayRows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan day count")
		}
		stats.RecentScrapes = append(stats.RecentScrapes, dc)
	}
	return stats, eris.Wrap(dayRows.Err(), "sqlite: iterate day counts")
}

func (s *SQLiteStore) GeocodeStats(ctx context.Context) ([]model.GeocodeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(geocode_status, 'pending'), COUNT(*)
		FROM permits
		GROUP BY geocode_status
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: geocode stats")
	}
	defer rows.Close()

	var counts []model.GeocodeCount
	for rows.Next() {
		var gc model.GeocodeCount
		if err := rows.Scan(&gc.Status, &gc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan geocode count")
		}
		counts = append(counts, gc)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate geocode counts")
}

func (s *SQLiteStore) SelectPendingGeocode(ctx context.Context, limit int) ([]PendingGeocode, error) {
	query := `
		SELECT id, permit_number,
			COALESCE(primary_location, ''), COALESCE(specific_location, ''),
			COALESCE(source_city, '')
		FROM permits
		WHERE (geocode_status = 'pending' OR geocode_status IS NULL)
		AND (primary_location IS NOT NULL OR specific_location IS NOT NULL)
		ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select pending geocode")
	}
	defer rows.Close()

	var pending []PendingGeocode
	for rows.Next() {
		var p PendingGeocode
		if err := rows.Scan(&p.ID, &p.PermitNumber, &p.PrimaryLocation, &p.SpecificLocation, &p.SourceCity); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending geocode")
		}
		pending = append(pending, p)
	}
	return pending, eris.Wrap(rows.Err(), "sqlite: iterate pending geocode")
}

func (s *SQLiteStore) ApplyGeocodeUpdates(ctx context.Context, updates []GeocodeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin geocode batch")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, u := range updates {
		if u.Status == model.GeocodeSuccess {
			_, err = tx.ExecContext(ctx, `
				UPDATE permits
				SET latitude = ?, longitude = ?, geocode_status = 'success', updated_at = ?
				WHERE id = ?`,
				u.Latitude, u.Longitude, now, u.ID,
			)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE permits
				SET geocode_status = 'failed', updated_at = ?
				WHERE id = ?`,
				now, u.ID,
			)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: apply geocode update for id %d", u.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit geocode batch")
}

func (s *SQLiteStore) ResetFailedGeocodes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE permits
		SET geocode_status = 'pending', latitude = NULL, longitude = NULL, updated_at = ?
		WHERE geocode_status = 'failed'`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset failed geocodes")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset rows affected")
	}
	zap.L().Info("reset failed geocodes", zap.Int64("count", n))
	return n, nil
}
