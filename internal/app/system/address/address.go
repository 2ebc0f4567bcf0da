// internal/app/system/address/address.go

// Package address normalizes Japanese postal addresses held on member records.
//
// A member address is stored as two parts: the city portion (prefecture
// through municipality, ward and district) and the street portion (block,
// lot and building numbers, building name). Older records often carry the
// whole address in the city portion, sometimes typed with full-width digits.
// The functions here detect and repair those records. They are pure and safe
// for concurrent use.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Outcome classifies what a normalization pass did to a value.
type Outcome int

const (
	// Unchanged means the input was returned as-is.
	Unchanged Outcome = iota
	// Converted means only full-width characters were rewritten.
	Converted
	// Split means the city and street portions were separated.
	Split
)

func (o Outcome) String() string {
	switch o {
	case Converted:
		return "converted"
	case Split:
		return "split"
	default:
		return "unchanged"
	}
}

// halfWidth maps the full-width characters that show up in typed addresses
// to their ASCII equivalents.
var halfWidth = runes.Map(func(r rune) rune {
	switch {
	case r >= '０' && r <= '９':
		return '0' + (r - '０')
	case r == '－':
		return '-'
	case r == '　':
		return ' '
	case r == '（':
		return '('
	case r == '）':
		return ')'
	}
	return r
})

// ToHalfWidth replaces full-width digits, hyphen, space and parentheses with
// their half-width forms. Every other character passes through. The result is
// the same length in characters, and applying it twice is the same as once.
func ToHalfWidth(s string) string {
	if !HasFullWidth(s) {
		return s
	}
	out, _, err := transform.String(halfWidth, s)
	if err != nil {
		return s
	}
	return out
}

// HasFullWidth reports whether ToHalfWidth would change s.
func HasFullWidth(s string) bool {
	for _, r := range s {
		if (r >= '０' && r <= '９') || r == '－' || r == '　' || r == '（' || r == '）' {
			return true
		}
	}
	return false
}

const digits = `[0-9０-９]`

var (
	hyphenNumberRE = regexp.MustCompile(digits + `+[-－]` + digits + `+`)
	lotNumberRE    = regexp.MustCompile(digits + `+番地`)
)

// HasEmbeddedStreetNumber reports whether an address contains a street number
// fragment: a digit run, a hyphen and another digit run ("2-8-1"), or a digit
// run followed by 番地. A lone number is not enough.
func HasEmbeddedStreetNumber(s string) bool {
	return hyphenNumberRE.MatchString(s) || lotNumberRE.MatchString(s)
}

// adminMarkers are the administrative-unit characters one of which must
// appear in an accepted city portion.
const adminMarkers = "都道府県市区町村"

// TrimStreetFromCity removes street from the end of city when the city
// portion still carries it. A match anywhere else in city is left alone, as is
// a city that is nothing but the street.
func TrimStreetFromCity(city, street string) string {
	street = strings.TrimSpace(street)
	trimmed := strings.TrimSpace(city)
	if street == "" || len(trimmed) <= len(street) || !strings.HasSuffix(trimmed, street) {
		return city
	}
	return strings.TrimSpace(strings.TrimSuffix(trimmed, street))
}

// Join renders the two portions as one display string.
func Join(city, street string) string {
	city = strings.TrimSpace(city)
	street = strings.TrimSpace(street)
	switch {
	case city == "":
		return street
	case street == "":
		return city
	}
	return city + " " + street
}
