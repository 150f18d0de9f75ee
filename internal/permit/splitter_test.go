package permit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFields_CoreAndExtensionDisjoint(t *testing.T) {
	fields := map[string]any{
		"permit_number":    "BP-2026-001",
		"permit_type":      "building",
		"status":           "Issued",
		"primary_location": "123 Main St",
		"application_date": "Feb 01, 2026",
		"inspector_name":   "J. Chen",
		"floor_area_sqft":  1200,
	}

	rec, ext := SplitFields(fields)

	assert.Equal(t, "BP-2026-001", rec.PermitNumber)
	assert.Equal(t, "building", rec.PermitType)
	assert.Equal(t, "Issued", rec.Status)
	assert.Equal(t, "123 Main St", rec.PrimaryLocation)
	assert.Equal(t, "2026-02-01", rec.ApplicationDate)

	// Only the non-canonical fields land in the extension.
	assert.Equal(t, map[string]any{
		"inspector_name":  "J. Chen",
		"floor_area_sqft": 1200,
	}, ext)

	for key := range coreFields {
		assert.NotContains(t, ext, key)
	}
}

func TestSplitFields_DropsEmptyAndSentinel(t *testing.T) {
	rec, ext := SplitFields(map[string]any{
		"permit_number": "BP-2026-002",
		"status":        "",
		"contractors":   "(None)",
		"custom_field":  "",
		"other_field":   "(None)",
		"nil_field":     nil,
	})

	assert.Equal(t, "BP-2026-002", rec.PermitNumber)
	assert.Empty(t, rec.Status)
	assert.Empty(t, rec.Contractors)
	assert.Empty(t, ext)
}

func TestSplitFields_UnparseableDateBecomesAbsent(t *testing.T) {
	rec, ext := SplitFields(map[string]any{
		"permit_number": "BP-2026-003",
		"issue_date":    "sometime next year",
	})

	assert.Equal(t, "BP-2026-003", rec.PermitNumber)
	assert.Empty(t, rec.IssueDate)
	assert.Empty(t, ext)
}

func TestSplitFields_AllCanonicalFields(t *testing.T) {
	rec, ext := SplitFields(map[string]any{
		"permit_number":       "BP-2026-004",
		"permit_type":         "demolition",
		"status":              "Pending",
		"list_status":         "Open",
		"application_date":    "2026-01-10",
		"issue_date":          "2026-01-20",
		"completed_date":      "2026-03-01",
		"list_created_date":   "2026-01-09",
		"list_issue_date":     "2026-01-21",
		"list_completed_date": "2026-03-02",
		"primary_location":    "500 Granville St",
		"specific_location":   "500 Granville St, Floor 2",
		"list_location":       "Granville St",
		"parcel_id":           "P-123",
		"parcel_address":      "500 Granville St",
		"folio_number":        "F-456",
		"work_description":    "Interior demolition",
		"type_of_work":        "Demolition",
		"contractors":         "Acme Demo Ltd",
		"url":                 "https://example.org/permits/BP-2026-004",
		"source_city":         "Richmond",
	})

	assert.Empty(t, ext)
	assert.Equal(t, "demolition", rec.PermitType)
	assert.Equal(t, "Open", rec.ListStatus)
	assert.Equal(t, "2026-01-09", rec.ListCreatedDate)
	assert.Equal(t, "2026-01-21", rec.ListIssueDate)
	assert.Equal(t, "2026-03-02", rec.ListCompletedDate)
	assert.Equal(t, "500 Granville St, Floor 2", rec.SpecificLocation)
	assert.Equal(t, "Granville St", rec.ListLocation)
	assert.Equal(t, "P-123", rec.ParcelID)
	assert.Equal(t, "F-456", rec.FolioNumber)
	assert.Equal(t, "Acme Demo Ltd", rec.Contractors)
	assert.Equal(t, "Richmond", rec.SourceCity)
}

func TestSplitFields_NonStringValuesCoerced(t *testing.T) {
	rec, ext := SplitFields(map[string]any{
		"permit_number": "BP-2026-005",
		"folio_number":  12345,
	})

	assert.Equal(t, "12345", rec.FolioNumber)
	assert.Empty(t, ext)
}
