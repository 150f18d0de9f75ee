package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// nominatimResult is one candidate in the Nominatim JSON response.
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *Cache
	baseURL    string
	userAgent  string
	region     Region
	bounds     BoundingBox
}

// NewClient creates a Client bound to a region and bounding box. The cache is
// run-scoped and injected so lifecycle and test isolation stay explicit; the
// limiter gates every call that actually reaches the network, shared across
// however many workers drive this client.
func NewClient(region Region, bounds BoundingBox, cache *Cache, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		cache:      cache,
		baseURL:    nominatimSearchURL,
		userAgent:  "PermitFinder/1.0 (permit tracking application)",
		region:     region,
		bounds:     bounds,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache()
	}
	return c
}

// Resolve looks up a cleaned address. Cached results (negative ones included)
// short-circuit the network; network and parse failures come back as
// unmatched for this attempt without being cached, so a later run can retry.
func (c *client) Resolve(ctx context.Context, address, city string) (*Result, error) {
	if strings.TrimSpace(address) == "" {
		return &Result{Matched: false}, nil
	}
	if city == "" {
		city = c.region.City
	}

	query := c.composeQuery(address, city)
	if cached, ok := c.cache.Get(query); ok {
		zap.L().Debug("geocode cache hit", zap.String("address", address), zap.Bool("matched", cached.Matched))
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	candidates, err := c.search(ctx, query)
	if err != nil {
		zap.L().Warn("geocode: lookup failed", zap.String("address", address), zap.Error(err))
		return &Result{Matched: false}, nil
	}

	if len(candidates) == 0 {
		noMatch := &Result{Matched: false}
		c.cache.Put(query, noMatch)
		return noMatch, nil
	}

	lat, lon, err := parseCoordinates(candidates[0])
	if err != nil {
		zap.L().Warn("geocode: bad coordinates in response", zap.String("address", address), zap.Error(err))
		return &Result{Matched: false}, nil
	}

	if !c.bounds.Contains(lat, lon) {
		zap.L().Warn("geocode: result outside region, rejected",
			zap.String("address", address),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
		)
		noMatch := &Result{Matched: false}
		c.cache.Put(query, noMatch)
		return noMatch, nil
	}

	result := &Result{Latitude: lat, Longitude: lon, Matched: true}
	c.cache.Put(query, result)
	return result, nil
}

// composeQuery appends the fixed region suffix to the cleaned address.
func (c *client) composeQuery(address, city string) string {
	parts := []string{address, city, c.region.Province, c.region.Country}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// search performs the actual provider request: one candidate, country-restricted.
func (c *client) search(ctx context.Context, query string) ([]nominatimResult, error) {
	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	if c.region.CountryCode != "" {
		params.Set("countrycodes", c.region.CountryCode)
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var candidates []nominatimResult
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	return candidates, nil
}

// parseCoordinates converts Nominatim's string lat/lon fields to floats.
func parseCoordinates(r nominatimResult) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lat")
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lon")
	}
	return lat, lon, nil
}
