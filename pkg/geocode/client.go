// Package geocode resolves free-text addresses to validated coordinates via
// a rate-limited, cached, region-bounded Nominatim lookup.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client resolves a cleaned address to coordinates. city overrides the
// region's default city for records from another jurisdiction.
type Client interface {
	Resolve(ctx context.Context, address, city string) (*Result, error)
}

// Result holds the lookup output for an address. Matched=false covers
// not-found, out-of-region, and transient provider failures alike.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Matched   bool    `json:"matched"`
}

// Region is the fixed suffix composed onto every query, plus the provider's
// country restriction.
type Region struct {
	City        string
	Province    string
	Country     string
	CountryCode string
}

// BoundingBox is the geographic envelope accepted results must fall inside.
// A provider match outside the box is rejected like a non-match — it means
// the provider found a same-named place in the wrong region.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the coordinate falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit for network calls.
// Nominatim's usage policy allows one request per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithBaseURL overrides the lookup endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *client) { c.baseURL = baseURL }
}

// WithUserAgent sets the User-Agent header the provider requires.
func WithUserAgent(ua string) Option {
	return func(c *client) { c.userAgent = ua }
}

// WithTimeout bounds each network call so one unresponsive lookup cannot
// stall a run.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.httpClient.Timeout = d }
}
