package adapters

import (
	"context"
	"errors"

	"civictrust/internal/identity/models"
	"civictrust/internal/privilege/ports"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/sentinel"
)

// CitizenReader is the slice of the identity store this adapter needs.
type CitizenReader interface {
	FindByID(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)
}

// IdentityAdapter implements ports.CitizenLookup over the identity store.
// It keeps privilege resolution in-process while preserving the boundary.
type IdentityAdapter struct {
	citizens CitizenReader
}

func NewIdentityAdapter(citizens CitizenReader) ports.CitizenLookup {
	return &IdentityAdapter{citizens: citizens}
}

func (a *IdentityAdapter) Lookup(ctx context.Context, id domain.CitizenID) (*ports.CitizenStanding, error) {
	c, err := a.citizens.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
		}
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizen")
	}
	return &ports.CitizenStanding{
		CitizenID:       c.ID,
		Role:            c.Role,
		ReputationScore: c.ReputationScore,
		AssuranceLevel:  c.AssuranceLevel,
	}, nil
}
