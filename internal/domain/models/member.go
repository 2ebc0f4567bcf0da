// internal/domain/models/member.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is an association member record.
//
// Address fields:
//   - Address: city portion (prefecture, municipality, ward, district)
//   - StreetAddress: block/lot/building portion, empty on records never split
//
// Qualification fields:
//   - Types: the qualification tags held, in display order
//   - Type: legacy single value, always Types[0] (or empty); written by the
//     store, never set on its own
type Member struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number     string             `bson:"number" json:"number"` // membership number
	Name       string             `bson:"name" json:"name"`
	Furigana   string             `bson:"furigana" json:"furigana"`
	FuriganaCI string             `bson:"furigana_ci" json:"-"` // folded for prefix search

	Types []string `bson:"types" json:"types"`
	Type  string   `bson:"type" json:"type"`

	Phone         string `bson:"phone" json:"phone"`
	Email         string `bson:"email,omitempty" json:"email,omitempty"`
	PostalCode    string `bson:"postal_code,omitempty" json:"postal_code,omitempty"` // 7 ASCII digits
	Prefecture    string `bson:"prefecture" json:"prefecture"`
	Address       string `bson:"address" json:"address"`
	StreetAddress string `bson:"street_address,omitempty" json:"street_address,omitempty"`
	Notes         string `bson:"notes,omitempty" json:"notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// QualificationTypes lists the tags offered on member forms and filters.
var QualificationTypes = []string{
	"ベビマ",
	"ベビーヨガマスター",
	"ベビーヨガインストラクター",
}

// IsQualificationType reports whether t is an offered tag.
func IsQualificationType(t string) bool {
	for _, q := range QualificationTypes {
		if q == t {
			return true
		}
	}
	return false
}

// HasType reports whether the member holds tag t.
func (m *Member) HasType(t string) bool {
	for _, have := range m.Types {
		if have == t {
			return true
		}
	}
	return false
}

// FullAddress returns the city and street portions as one line.
func (m *Member) FullAddress() string {
	switch {
	case m.StreetAddress == "":
		return m.Address
	case m.Address == "":
		return m.StreetAddress
	}
	return m.Address + " " + m.StreetAddress
}

// FormattedPostalCode renders a stored postal code as NNN-NNNN.
func (m *Member) FormattedPostalCode() string {
	if len(m.PostalCode) != 7 {
		return m.PostalCode
	}
	return m.PostalCode[:3] + "-" + m.PostalCode[3:]
}
