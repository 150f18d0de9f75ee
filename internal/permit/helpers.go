package permit

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nonNilExt guarantees a non-nil extension map so the column is always valid JSON.
func nonNilExt(ext map[string]any) map[string]any {
	if ext == nil {
		return map[string]any{}
	}
	return ext
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// dateString formats a nullable DATE column as YYYY-MM-DD.
func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
