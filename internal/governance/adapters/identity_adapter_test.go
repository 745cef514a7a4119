package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civictrust/internal/identity/models"
	"civictrust/internal/identity/store/citizen"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/sentinel"
)

type unavailableReader struct{}

func (unavailableReader) FindByID(context.Context, domain.CitizenID) (*models.Citizen, error) {
	return nil, errors.Join(sentinel.ErrUnavailable, errors.New("dial tcp: refused"))
}

func TestIdentityDirectory_Profile(t *testing.T) {
	ctx := context.Background()
	store := citizen.NewInMemory()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	anchored, err := models.NewCitizen(domain.CitizenID(uuid.New()), domain.RoleJournalist, domain.AssuranceDocumentVerified,
		&models.GeoAnchor{Country: "Portugal", Locality: "Lisboa"}, now)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, anchored))

	floating, err := models.NewCitizen(domain.CitizenID(uuid.New()), domain.RoleActiveCitizen, domain.AssuranceUnverified, nil, now)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, floating))

	dir := NewIdentityDirectory(store)

	t.Run("carries the anchor", func(t *testing.T) {
		p, err := dir.Profile(ctx, anchored.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleJournalist, p.Role)
		assert.Equal(t, domain.AssuranceDocumentVerified, p.AssuranceLevel)
		require.NotNil(t, p.Anchor)
		assert.Equal(t, "Lisboa", p.Anchor.Locality)
	})

	t.Run("no anchor", func(t *testing.T) {
		p, err := dir.Profile(ctx, floating.ID)
		require.NoError(t, err)
		assert.Nil(t, p.Anchor)
	})

	t.Run("unknown citizen", func(t *testing.T) {
		_, err := dir.Profile(ctx, domain.CitizenID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("store down", func(t *testing.T) {
		_, err := NewIdentityDirectory(unavailableReader{}).Profile(ctx, anchored.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
