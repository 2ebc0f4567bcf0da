// internal/app/system/address/split.go
package address

import (
	"regexp"
	"strings"
)

// Result is the outcome of SplitAddress.
type Result struct {
	City    string
	Street  string
	Outcome Outcome
}

// Each pattern captures a shortest prefix and the street fragment that follows.
var (
	chomeHyphenRE = regexp.MustCompile(`^(.*?)((?:` + digits + `+丁目)?` + digits + `+[-－]` + digits + `+.*)$`)
	chomeLotRE    = regexp.MustCompile(`^(.*?)((?:` + digits + `+丁目)?` + digits + `+番地.*)$`)
	firstDigitRE  = regexp.MustCompile(`^(.*?)(` + digits + `.*)$`)
)

// Splitter splits a city-portion string that still holds its street number.
type Splitter struct {
	looseFallback bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithLooseFallback enables or disables the last-resort rule that splits at
// the first digit when neither the hyphen nor the 番地 pattern matches. It is
// enabled by default.
func WithLooseFallback(enabled bool) Option {
	return func(s *Splitter) {
		s.looseFallback = enabled
	}
}

// NewSplitter returns a Splitter with the given options applied.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{looseFallback: true}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// LooseFallback reports whether the first-digit rule is enabled.
func (s *Splitter) LooseFallback() bool {
	return s.looseFallback
}

var defaultSplitter = NewSplitter()

// SplitAddress splits s with the default Splitter.
func SplitAddress(s string) Result {
	return defaultSplitter.Split(s)
}

// Split tries the hyphen rule, then the 番地 rule, then (when enabled) the
// first-digit rule. The first pattern that matches decides the candidate.
//
// A candidate is kept only when its city portion contains an administrative
// marker and does not itself contain the street portion. Anything else returns
// the input unsplit with an empty street.
func (s *Splitter) Split(addr string) Result {
	unsplit := Result{City: addr, Outcome: Unchanged}

	m := chomeHyphenRE.FindStringSubmatch(addr)
	if m == nil {
		m = chomeLotRE.FindStringSubmatch(addr)
	}
	if m == nil && s.looseFallback {
		m = firstDigitRE.FindStringSubmatch(addr)
	}
	if m == nil {
		return unsplit
	}

	city := strings.TrimSpace(m[1])
	street := strings.TrimSpace(m[2])
	if !acceptable(city, street) {
		return unsplit
	}
	return Result{City: city, Street: street, Outcome: Split}
}

func acceptable(city, street string) bool {
	if city == "" || street == "" {
		return false
	}
	if !strings.ContainsAny(city, adminMarkers) {
		return false
	}
	return !strings.Contains(city, street)
}
