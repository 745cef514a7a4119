package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "civictrust/pkg/domain-errors"
)

// CitizenID identifies a citizen identity. Opaque UUID.
type CitizenID uuid.UUID

// PoolID identifies a signature pool. Derived from (region, target), see
// PoolIDFor.
type PoolID uuid.UUID

// ComplaintID identifies the complaint a pool aggregates endorsements for.
type ComplaintID uuid.UUID

// poolNamespace scopes deterministic pool identifiers. Changing it changes
// every pool ID ever issued.
var poolNamespace = uuid.MustParse("6f1c2e9a-3b7d-5c40-9e21-7a4d8b0f12c3")

// ParseCitizenID parses a non-nil UUID citizen identifier.
func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseNonNilUUID(s, "citizen_id")
	return CitizenID(u), err
}

// ParsePoolID parses a non-nil UUID pool identifier.
func ParsePoolID(s string) (PoolID, error) {
	u, err := parseNonNilUUID(s, "pool_id")
	return PoolID(u), err
}

// ParseComplaintID parses a non-nil UUID complaint identifier.
func ParseComplaintID(s string) (ComplaintID, error) {
	u, err := parseNonNilUUID(s, "complaint_id")
	return ComplaintID(u), err
}

// PoolIDFor returns the deterministic pool identifier for a (region, target)
// pair. Every process derives the same ID, so the pool can be addressed by
// either key without a lookup.
func PoolIDFor(region RegionSlug, target ComplaintID) PoolID {
	name := string(region) + "/" + target.String()
	return PoolID(uuid.NewSHA1(poolNamespace, []byte(name)))
}

func parseNonNilUUID(s, field string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" must not be the nil UUID")
	}
	return u, nil
}

func (id CitizenID) String() string   { return uuid.UUID(id).String() }
func (id CitizenID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PoolID) String() string      { return uuid.UUID(id).String() }
func (id PoolID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ComplaintID) String() string { return uuid.UUID(id).String() }
func (id ComplaintID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CitizenID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id PoolID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ComplaintID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CitizenID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = CitizenID(u)
	return err
}

func (id *PoolID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = PoolID(u)
	return err
}

func (id *ComplaintID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ComplaintID(u)
	return err
}
