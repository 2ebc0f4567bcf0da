// internal/app/system/memberfix/plan.go
package memberfix

import (
	"slices"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/stratamembers/internal/domain/models"
)

// AddressChange is the planned repair of one member's address fields.
type AddressChange struct {
	Patch     memberstore.Patch
	Converted bool // full-width characters were rewritten
	Split     bool // the street portion was separated from the city portion

	BeforeAddress, BeforeStreet string
	AfterAddress, AfterStreet   string
}

// PlanAddress works out the address repair for m. Full-width characters in
// both portions are converted first; the city portion is then split when the
// street portion is empty and the city portion embeds a street number. A
// split that the splitter rejects leaves the city portion as converted. When
// the street portion is set and the city portion still ends with it, the
// duplicate is cut from the city and the change counts as a split.
// ok is false when nothing would change.
func PlanAddress(m models.Member, s *address.Splitter) (AddressChange, bool) {
	if s == nil {
		s = address.NewSplitter()
	}

	ch := AddressChange{
		BeforeAddress: m.Address,
		BeforeStreet:  m.StreetAddress,
	}

	city := address.ToHalfWidth(m.Address)
	street := address.ToHalfWidth(m.StreetAddress)
	ch.Converted = city != m.Address || street != m.StreetAddress

	if city != "" && street == "" && address.HasEmbeddedStreetNumber(city) {
		if res := s.Split(city); res.Outcome == address.Split {
			city, street = res.City, res.Street
			ch.Split = true
		}
	} else if street != "" {
		if trimmed := address.TrimStreetFromCity(city, street); trimmed != city {
			city = trimmed
			ch.Split = true
		}
	}

	ch.AfterAddress, ch.AfterStreet = city, street
	if city != m.Address {
		ch.Patch.Address = &city
	}
	if street != m.StreetAddress {
		ch.Patch.StreetAddress = &street
	}
	return ch, !ch.Patch.Empty()
}

// TypesChange is the planned qualification migration of one member.
type TypesChange struct {
	Patch  memberstore.Patch
	Before []string
	After  []string
	Legacy string
}

// PlanTypes applies r to m's tags. ok is false when the rule does not touch
// the record.
func PlanTypes(m models.Member, r qualtype.Rule) (TypesChange, bool) {
	res := r.Apply(m.Types, m.Type)
	ch := TypesChange{
		Before: slices.Clone(m.Types),
		After:  res.Types,
		Legacy: res.Legacy,
	}
	if !res.Migrated {
		return ch, false
	}
	ch.Patch.Types = res.Types
	return ch, true
}
