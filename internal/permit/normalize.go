package permit

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// noDataSentinel is the "no data" placeholder some source pages render.
const noDataSentinel = "(None)"

// dateFormats lists the accepted input layouts in attempt order. Unambiguous
// formats come before the locale-ambiguous numeric ones so "2026-02-01" never
// gets misread as a slash-date.
var dateFormats = []string{
	"2006-01-02",
	"Jan 02, 2006",
	"Jan, 02, 2006",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"January 02, 2006",
}

// NormalizeDate converts a free-text date to canonical YYYY-MM-DD form.
// Returns ok=false for empty input, the no-data sentinel, and anything no
// layout matches; an unparseable value is logged and dropped, never an error.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == noDataSentinel {
		return "", false
	}

	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	zap.L().Warn("permit: unparseable date", zap.String("value", s))
	return "", false
}

// emptyValue reports whether a raw field value carries no data and should be
// dropped rather than stored.
func emptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s == "" || s == noDataSentinel
	}
	return false
}
