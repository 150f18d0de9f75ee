// Package permit normalizes raw scraped field maps into canonical records and
// persists them with idempotent upsert semantics.
package permit

import (
	"fmt"
	"strings"

	"github.com/permit-finder/permit-cli/internal/model"
)

// coreFields is the canonical column set. Anything else a source produces is
// routed to the extension map.
var coreFields = map[string]bool{
	"permit_number":       true,
	"permit_type":         true,
	"status":              true,
	"list_status":         true,
	"application_date":    true,
	"issue_date":          true,
	"completed_date":      true,
	"list_created_date":   true,
	"list_issue_date":     true,
	"list_completed_date": true,
	"primary_location":    true,
	"specific_location":   true,
	"list_location":       true,
	"parcel_id":           true,
	"parcel_address":      true,
	"folio_number":        true,
	"work_description":    true,
	"type_of_work":        true,
	"contractors":         true,
	"url":                 true,
	"source_city":         true,
}

// dateFields are the canonical fields that pass through the date normalizer.
var dateFields = map[string]bool{
	"application_date":    true,
	"issue_date":          true,
	"completed_date":      true,
	"list_created_date":   true,
	"list_issue_date":     true,
	"list_completed_date": true,
}

// SplitFields partitions a raw source field map into a canonical record and
// an open extension map. Empty values and the no-data sentinel are dropped
// entirely. Canonical date fields are normalized during the split. Pure —
// unknown fields are never an error, they just land in the extension.
func SplitFields(fields map[string]any) (model.PermitRecord, map[string]any) {
	var rec model.PermitRecord
	ext := make(map[string]any)

	for key, value := range fields {
		if emptyValue(value) {
			continue
		}
		if !coreFields[key] {
			ext[key] = value
			continue
		}

		s := stringValue(value)
		if dateFields[key] {
			normalized, ok := NormalizeDate(s)
			if !ok {
				continue
			}
			s = normalized
		}
		assignCore(&rec, key, s)
	}

	return rec, ext
}

// assignCore sets one canonical field by its source name.
func assignCore(rec *model.PermitRecord, key, value string) {
	switch key {
	case "permit_number":
		rec.PermitNumber = value
	case "permit_type":
		rec.PermitType = value
	case "status":
		rec.Status = value
	case "list_status":
		rec.ListStatus = value
	case "application_date":
		rec.ApplicationDate = value
	case "issue_date":
		rec.IssueDate = value
	case "completed_date":
		rec.CompletedDate = value
	case "list_created_date":
		rec.ListCreatedDate = value
	case "list_issue_date":
		rec.ListIssueDate = value
	case "list_completed_date":
		rec.ListCompletedDate = value
	case "primary_location":
		rec.PrimaryLocation = value
	case "specific_location":
		rec.SpecificLocation = value
	case "list_location":
		rec.ListLocation = value
	case "parcel_id":
		rec.ParcelID = value
	case "parcel_address":
		rec.ParcelAddress = value
	case "folio_number":
		rec.FolioNumber = value
	case "work_description":
		rec.WorkDescription = value
	case "type_of_work":
		rec.TypeOfWork = value
	case "contractors":
		rec.Contractors = value
	case "url":
		rec.URL = value
	case "source_city":
		rec.SourceCity = value
	}
}

// stringValue renders a raw field value as a trimmed string.
func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
