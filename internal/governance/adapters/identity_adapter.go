package adapters

import (
	"context"
	"errors"

	"civictrust/internal/geography"
	"civictrust/internal/governance/ports"
	"civictrust/internal/identity/models"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/sentinel"
)

// CitizenReader is the slice of the identity store the directory reads.
type CitizenReader interface {
	FindByID(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)
}

// IdentityDirectory implements ports.CitizenDirectory over the identity store.
type IdentityDirectory struct {
	citizens CitizenReader
}

func NewIdentityDirectory(citizens CitizenReader) *IdentityDirectory {
	return &IdentityDirectory{citizens: citizens}
}

func (d *IdentityDirectory) Profile(ctx context.Context, id domain.CitizenID) (*ports.CitizenProfile, error) {
	c, err := d.citizens.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizen")
	}
	profile := &ports.CitizenProfile{
		CitizenID:       c.ID,
		Role:            c.Role,
		ReputationScore: c.ReputationScore,
		AssuranceLevel:  c.AssuranceLevel,
	}
	if !c.GeoAnchor.IsZero() {
		profile.Anchor = &geography.Anchor{Country: c.GeoAnchor.Country, Locality: c.GeoAnchor.Locality}
	}
	return profile, nil
}
