package geocode

import (
	"regexp"
	"strings"
)

// Cleaning patterns applied before external lookup. Unit designators and
// postal codes confuse the provider more than they help it.
var (
	postalCodeRe = regexp.MustCompile(`(?i)\s*[A-Z]\d[A-Z]\s*\d[A-Z]\d\s*$`)
	unitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*#\s*\d+\s*`),      // #3, # 123
		regexp.MustCompile(`(?i)\s*Unit\s*\d+\s*`),   // Unit 12
		regexp.MustCompile(`(?i)\s*Suite\s*\d+\s*`),  // Suite 100
		regexp.MustCompile(`(?i)\s*Apt\.?\s*\d+\s*`), // Apt 5, Apt. 5
		regexp.MustCompile(`\s*-\s*\d+\s*$`),         // -123 at end
	}
	whitespaceRe   = regexp.MustCompile(`\s+`)
	streetNumberRe = regexp.MustCompile(`^\d+\s+`)
)

// CleanAddress normalizes a raw address for external lookup: strips a
// trailing postal code, a trailing city/province suffix (the region context
// re-adds it), unit/suite/apartment designators, repeated whitespace, and
// trailing punctuation. Returns "" when nothing usable remains.
func CleanAddress(raw, city string) string {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return ""
	}

	addr = postalCodeRe.ReplaceAllString(addr, "")

	if city != "" {
		for _, suffix := range citySuffixPatterns(city) {
			addr = suffix.ReplaceAllString(addr, "")
		}
	}

	for _, p := range unitPatterns {
		addr = p.ReplaceAllString(addr, " ")
	}

	addr = whitespaceRe.ReplaceAllString(addr, " ")
	// Unit removal can leave empty segments like "123 Main St, ,".
	addr = strings.TrimRight(strings.TrimSpace(addr), ",. ")
	return addr
}

// citySuffixPatterns builds the trailing-jurisdiction patterns for a city,
// e.g. ", Vancouver, BC" or ", Vancouver British Columbia".
func citySuffixPatterns(city string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(city)
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i),?\s*` + quoted + `,?\s*BC\s*$`),
		regexp.MustCompile(`(?i),?\s*` + quoted + `,?\s*British Columbia\s*$`),
		regexp.MustCompile(`(?i),?\s*` + quoted + `\s*$`),
	}
}

// IsStreetAddress reports whether an address plausibly points at a street
// location: it must begin with a numeric street-number token. Labels like
// "Street Lighting" fail this check and never reach the network.
func IsStreetAddress(addr string) bool {
	return streetNumberRe.MatchString(strings.TrimSpace(addr))
}
