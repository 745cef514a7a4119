package ports

import (
	"context"

	"civictrust/pkg/domain"
)

// CitizenLookup loads the inputs privilege resolution needs. Defined here so
// the privilege module does not depend on identity storage.
type CitizenLookup interface {
	// Lookup returns the citizen's standing triple. A missing citizen is a
	// CodeNotFound domain error.
	Lookup(ctx context.Context, id domain.CitizenID) (*CitizenStanding, error)
}

// CitizenStanding is the port model for a citizen's privilege inputs.
type CitizenStanding struct {
	CitizenID       domain.CitizenID
	Role            domain.Role
	ReputationScore int
	AssuranceLevel  domain.AssuranceLevel
}
