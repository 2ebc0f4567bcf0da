// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls to ensure consistent behavior.
package normalize

import (
	"strings"

	"github.com/dalemusser/stratamembers/internal/app/system/address"
)

// Email normalizes an email address by trimming whitespace and converting to lowercase.
// This is the canonical way to normalize emails before storage or comparison.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a name by trimming whitespace and folding ideographic spaces.
// Use text.Fold() for case-insensitive comparison keys.
func Name(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "　", " "))
}

// LoginID normalizes an operator login identifier.
func LoginID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status normalizes a status value by trimming whitespace and converting to lowercase.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role normalizes a role value by trimming whitespace and converting to lowercase.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam normalizes a query parameter by trimming whitespace.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Phone converts full-width digits and hyphens and drops surrounding space.
func Phone(s string) string {
	return strings.TrimSpace(address.ToHalfWidth(s))
}

// Address converts full-width digits, hyphens, spaces and parentheses in an
// address portion and trims it.
func Address(s string) string {
	return strings.TrimSpace(address.ToHalfWidth(s))
}

// PostalCode reduces a postal code to its digits. "１２３－４５６７" and
// "123-4567" both become "1234567". The result is not checked for length.
func PostalCode(s string) string {
	s = address.ToHalfWidth(s)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Furigana trims a reading and converts hiragana to katakana so that
// "やまだ" and "ヤマダ" sort and search together.
func Furigana(s string) string {
	s = Name(s)
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + ('ァ' - 'ぁ')
		}
		return r
	}, s)
}
