package citizen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civictrust/internal/identity/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
	txcontext "civictrust/pkg/platform/tx"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore persists citizens in the citizens table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Citizen) error {
	var country, locality sql.NullString
	if c.GeoAnchor != nil {
		country = sql.NullString{String: c.GeoAnchor.Country, Valid: c.GeoAnchor.Country != ""}
		locality = sql.NullString{String: c.GeoAnchor.Locality, Valid: c.GeoAnchor.Locality != ""}
	}
	query := `
		INSERT INTO citizens (
			id, role, reputation_score, assurance_level,
			geo_country, geo_locality, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		string(c.Role),
		c.ReputationScore,
		string(c.AssuranceLevel),
		country,
		locality,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert citizen: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	return s.find(ctx, id, false)
}

// FindByIDForUpdate locks the row for the surrounding transaction.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	return s.find(ctx, id, true)
}

func (s *PostgresStore) find(ctx context.Context, id domain.CitizenID, forUpdate bool) (*models.Citizen, error) {
	query := `
		SELECT id, role, reputation_score, assurance_level,
			geo_country, geo_locality, version, created_at, updated_at
		FROM citizens
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		c                 models.Citizen
		rawID             uuid.UUID
		role, assurance   string
		country, locality sql.NullString
	)
	err := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&rawID, &role, &c.ReputationScore, &assurance,
		&country, &locality, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find citizen by id: %w", err)
	}
	c.ID = domain.CitizenID(rawID)
	c.Role = domain.Role(role)
	c.AssuranceLevel = domain.AssuranceLevel(assurance)
	if country.Valid || locality.Valid {
		c.GeoAnchor = &models.GeoAnchor{Country: country.String, Locality: locality.String}
	}
	return &c, nil
}

// UpdateStanding is a compare-and-swap on version.
func (s *PostgresStore) UpdateStanding(ctx context.Context, c *models.Citizen, expectedVersion int64) error {
	query := `
		UPDATE citizens
		SET reputation_score = $2, version = $3, updated_at = $4
		WHERE id = $1 AND version = $5
	`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.ReputationScore, c.Version, c.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update citizen standing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update citizen standing rows: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.find(ctx, c.ID, false); err != nil {
		return err
	}
	return sentinel.ErrConflict
}
