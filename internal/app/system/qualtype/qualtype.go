// internal/app/system/qualtype/qualtype.go

// Package qualtype migrates member qualification-type tags from a deprecated
// taxonomy to its replacement and derives the legacy single-value type field.
package qualtype

import (
	"sort"
	"strings"
)

// Set is a set of qualification tags.
type Set map[string]struct{}

// NewSet builds a Set from tags, skipping blanks.
func NewSet(tags ...string) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports whether tag is in the set.
func (s Set) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Rule maps every tag in Deprecated to Replacement.
type Rule struct {
	Deprecated  Set
	Replacement string
}

// Baby-massage tags folded into a single tag.
const (
	BabyMassageMaster     = "ベビーマッサージマスター"
	BabyMassageInstructor = "ベビーマッサージインストラクター"
	BabyMassage           = "ベビーマッサージ"
	BabyMa                = "ベビマ"
)

// DefaultRule returns the baby-massage consolidation rule.
func DefaultRule() Rule {
	return Rule{
		Deprecated:  NewSet(BabyMassageMaster, BabyMassageInstructor, BabyMassage),
		Replacement: BabyMa,
	}
}

// ParseRule builds a Rule from a comma-separated deprecated list. Blank input
// yields DefaultRule.
func ParseRule(deprecated, replacement string) Rule {
	if strings.TrimSpace(deprecated) == "" || strings.TrimSpace(replacement) == "" {
		return DefaultRule()
	}
	return Rule{
		Deprecated:  NewSet(strings.Split(deprecated, ",")...),
		Replacement: strings.TrimSpace(replacement),
	}
}

// Result is the outcome of Migrate.
type Result struct {
	Types    []string
	Legacy   string
	Migrated bool
}

// Legacy returns the single-value type derived from types.
func Legacy(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// Migrate rewrites a member's tag list under (deprecated -> replacement).
//
// When types holds a deprecated tag, every deprecated tag is removed and the
// replacement is appended unless already present; the other tags keep their
// order. When types is empty and the legacy field holds a deprecated tag, the
// list becomes [replacement]. Otherwise nothing changes. Legacy is the first
// tag of the resulting list; a record with no tags keeps the legacy value it
// came with. types is not modified.
func Migrate(types []string, legacy string, deprecated Set, replacement string) Result {
	hit := false
	for _, t := range types {
		if deprecated.Has(t) {
			hit = true
			break
		}
	}

	switch {
	case hit:
		out := make([]string, 0, len(types)+1)
		hasReplacement := false
		for _, t := range types {
			if deprecated.Has(t) {
				continue
			}
			if t == replacement {
				hasReplacement = true
			}
			out = append(out, t)
		}
		if !hasReplacement {
			out = append(out, replacement)
		}
		return Result{Types: out, Legacy: Legacy(out), Migrated: true}

	case len(types) == 0 && deprecated.Has(legacy):
		out := []string{replacement}
		return Result{Types: out, Legacy: replacement, Migrated: true}
	}

	out := append([]string(nil), types...)
	if len(out) == 0 {
		return Result{Types: out, Legacy: legacy}
	}
	return Result{Types: out, Legacy: Legacy(out)}
}

// Apply runs Migrate with r.
func (r Rule) Apply(types []string, legacy string) Result {
	return Migrate(types, legacy, r.Deprecated, r.Replacement)
}

// Normalize returns the tag list a record should carry: the list itself when
// present, otherwise the legacy value as a one-element list. Blank and
// duplicate tags are dropped.
func Normalize(types []string, legacy string) []string {
	if len(types) == 0 {
		legacy = strings.TrimSpace(legacy)
		if legacy == "" {
			return []string{}
		}
		return []string{legacy}
	}
	seen := make(map[string]bool, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
