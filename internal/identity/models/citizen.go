package models

import (
	"strings"
	"time"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

const (
	MinReputation = -1000
	MaxReputation = 10000
)

// GeoAnchor is the optional locality a citizen registered from.
type GeoAnchor struct {
	Country  string `json:"country"`
	Locality string `json:"locality"`
}

func (g *GeoAnchor) IsZero() bool {
	return g == nil || (g.Country == "" && g.Locality == "")
}

// Citizen is the identity aggregate read by the trust engine.
//
// Invariants:
//   - ReputationScore stays within [MinReputation, MaxReputation]
//   - ReputationScore changes only through ApplyStanding
//   - Version increases by one on every standing change
type Citizen struct {
	ID              domain.CitizenID      `json:"id"`
	Role            domain.Role           `json:"role"`
	ReputationScore int                   `json:"reputation_score"`
	AssuranceLevel  domain.AssuranceLevel `json:"assurance_level"`
	GeoAnchor       *GeoAnchor            `json:"geo_anchor,omitempty"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// NewCitizen validates and constructs a citizen with a neutral score.
func NewCitizen(id domain.CitizenID, role domain.Role, assurance domain.AssuranceLevel, anchor *GeoAnchor, now time.Time) (*Citizen, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "citizen id is required")
	}
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown role %q", role)
	}
	if !assurance.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown assurance level %q", assurance)
	}
	if anchor != nil {
		anchor = &GeoAnchor{
			Country:  strings.TrimSpace(anchor.Country),
			Locality: strings.TrimSpace(anchor.Locality),
		}
		if anchor.IsZero() {
			anchor = nil
		}
	}
	return &Citizen{
		ID:             id,
		Role:           role,
		AssuranceLevel: assurance,
		GeoAnchor:      anchor,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanApplyStanding checks that score is inside the reputation bounds.
func (c *Citizen) CanApplyStanding(score int) error {
	if score < MinReputation || score > MaxReputation {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "reputation %d outside [%d, %d]", score, MinReputation, MaxReputation)
	}
	return nil
}

// ApplyStanding sets the new score and bumps the version.
// Call CanApplyStanding first.
func (c *Citizen) ApplyStanding(score int, now time.Time) {
	c.ReputationScore = score
	c.Version++
	c.UpdatedAt = now
}

// IsSanctioned reports whether reputation has fallen below zero.
func (c *Citizen) IsSanctioned() bool {
	return c.ReputationScore < 0
}
