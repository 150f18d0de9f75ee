// Package model defines the canonical permit record shared across the pipeline.
package model

import "time"

// GeocodeStatus represents the enrichment lifecycle state of a record's coordinates.
type GeocodeStatus string

const (
	GeocodePending GeocodeStatus = "pending"
	GeocodeSuccess GeocodeStatus = "success"
	GeocodeFailed  GeocodeStatus = "failed"
)

// PermitRecord is the fixed-schema representation of a permit after
// normalization. Fields a source provides outside the canonical set live in
// Extension; canonical names never appear there.
//
// The detail-page fields (Status, ApplicationDate, ...) and their list-page
// shadows (ListStatus, ListCreatedDate, ...) are both retained verbatim —
// sources disagree and neither view alone is authoritative.
type PermitRecord struct {
	ID           int64  `json:"id,omitempty"`
	PermitNumber string `json:"permit_number"`
	PermitType   string `json:"permit_type,omitempty"`

	Status     string `json:"status,omitempty"`
	ListStatus string `json:"list_status,omitempty"`

	ApplicationDate   string `json:"application_date,omitempty"`
	IssueDate         string `json:"issue_date,omitempty"`
	CompletedDate     string `json:"completed_date,omitempty"`
	ListCreatedDate   string `json:"list_created_date,omitempty"`
	ListIssueDate     string `json:"list_issue_date,omitempty"`
	ListCompletedDate string `json:"list_completed_date,omitempty"`

	PrimaryLocation  string `json:"primary_location,omitempty"`
	SpecificLocation string `json:"specific_location,omitempty"`
	ListLocation     string `json:"list_location,omitempty"`

	ParcelID      string `json:"parcel_id,omitempty"`
	ParcelAddress string `json:"parcel_address,omitempty"`
	FolioNumber   string `json:"folio_number,omitempty"`

	WorkDescription string `json:"work_description,omitempty"`
	TypeOfWork      string `json:"type_of_work,omitempty"`
	Contractors     string `json:"contractors,omitempty"`
	URL             string `json:"url,omitempty"`
	SourceCity      string `json:"source_city,omitempty"`

	Extension map[string]any `json:"extension,omitempty"`

	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	GeocodeStatus GeocodeStatus `json:"geocode_status,omitempty"`

	ScrapedAt time.Time `json:"scraped_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Stats summarizes the canonical store contents.
type Stats struct {
	Total         int            `json:"total"`
	ByType        []TypeCount    `json:"by_type"`
	RecentScrapes []DayCount     `json:"recent_scrapes"`
	ByGeocode     []GeocodeCount `json:"by_geocode,omitempty"`
}

// TypeCount is a permit count for one permit type.
type TypeCount struct {
	PermitType string `json:"permit_type"`
	Count      int    `json:"count"`
}

// DayCount is a permit count for one scrape date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GeocodeCount is a permit count for one geocode status.
type GeocodeCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
