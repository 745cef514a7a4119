package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"civictrust/internal/governance/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists pools in signature_pools and pool_signatures. Row
// locks make append and seal atomic across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) Append(ctx context.Context, rec models.SignatureRecord, openedAt time.Time, maxLeaves int) (*models.Pool, error) {
	id := domain.PoolIDFor(rec.RegionSlug, rec.TargetComplaintID)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin append: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO signature_pools (id, region_slug, target_complaint_id, status, opened_at)
		VALUES ($1, $2, $3, 'OPEN', $4)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(id), string(rec.RegionSlug), uuid.UUID(rec.TargetComplaintID), openedAt)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	var (
		status    string
		leafCount int
	)
	err = tx.QueryRow(ctx, `SELECT status, leaf_count FROM signature_pools WHERE id = $1 FOR UPDATE`, uuid.UUID(id)).
		Scan(&status, &leafCount)
	if err != nil {
		return nil, fmt.Errorf("lock pool: %w", err)
	}
	if models.Status(status) == models.StatusSealed {
		return nil, sentinel.ErrInvalidState
	}
	if maxLeaves > 0 && leafCount >= maxLeaves {
		return nil, sentinel.ErrCapacity
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pool_signatures (
			pool_id, seq, citizen_id, target_complaint_id, region_slug,
			assurance_level, leaf_hash, weight, signed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(id),
		leafCount,
		uuid.UUID(rec.CitizenID),
		uuid.UUID(rec.TargetComplaintID),
		string(rec.RegionSlug),
		string(rec.AssuranceLevel),
		string(rec.LeafHash),
		rec.Weight,
		rec.SignedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, sentinel.ErrDuplicate
		}
		return nil, fmt.Errorf("insert signature: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE signature_pools
		SET total_weight = total_weight + $2, leaf_count = leaf_count + 1
		WHERE id = $1
	`, uuid.UUID(id), rec.Weight)
	if err != nil {
		return nil, fmt.Errorf("update pool weight: %w", err)
	}

	p, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PoolID) (*models.Pool, error) {
	return s.load(ctx, s.pool, id)
}

func (s *PostgresStore) CompareAndSeal(ctx context.Context, id domain.PoolID, expectedLeafCount int, root domain.HexDigest, sealedAt time.Time) (*models.Pool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE signature_pools
		SET status = 'SEALED', merkle_root = $3, sealed_at = $4
		WHERE id = $1 AND status = 'OPEN' AND leaf_count = $2
	`, uuid.UUID(id), expectedLeafCount, string(root), sealedAt)
	if err != nil {
		return nil, fmt.Errorf("seal pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var (
			status    string
			leafCount int
		)
		err := s.pool.QueryRow(ctx, `SELECT status, leaf_count FROM signature_pools WHERE id = $1`, uuid.UUID(id)).
			Scan(&status, &leafCount)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, sentinel.ErrNotFound
		case err != nil:
			return nil, fmt.Errorf("inspect unsealed pool: %w", err)
		case models.Status(status) == models.StatusSealed:
			return nil, sentinel.ErrInvalidState
		default:
			return nil, sentinel.ErrConflict
		}
	}
	return s.load(ctx, s.pool, id)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(filter.Regions) > 0 {
		regions := make([]string, len(filter.Regions))
		for i, r := range filter.Regions {
			regions[i] = string(r)
		}
		args = append(args, regions)
		where = append(where, fmt.Sprintf("region_slug = ANY($%d)", len(args)))
	}
	query := `
		SELECT id, region_slug, target_complaint_id, status, total_weight,
			leaf_count, merkle_root, opened_at, sealed_at
		FROM signature_pools`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY opened_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	out := make([]models.Snapshot, 0)
	for rows.Next() {
		p, leafCount, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		snap := p.Snapshot()
		snap.SignatureCount = leafCount
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) load(ctx context.Context, q pgQuerier, id domain.PoolID) (*models.Pool, error) {
	row := q.QueryRow(ctx, `
		SELECT id, region_slug, target_complaint_id, status, total_weight,
			leaf_count, merkle_root, opened_at, sealed_at
		FROM signature_pools
		WHERE id = $1
	`, uuid.UUID(id))
	p, _, err := scanPool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT seq, citizen_id, assurance_level, leaf_hash, weight, signed_at
		FROM pool_signatures
		WHERE pool_id = $1
		ORDER BY seq
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("load signatures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec       models.SignatureRecord
			citizenID uuid.UUID
			level     string
			leaf      string
		)
		if err := rows.Scan(&rec.Seq, &citizenID, &level, &leaf, &rec.Weight, &rec.SignedAt); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		rec.CitizenID = domain.CitizenID(citizenID)
		rec.AssuranceLevel = domain.AssuranceLevel(level)
		rec.LeafHash = domain.HexDigest(leaf)
		rec.RegionSlug = p.RegionSlug
		rec.TargetComplaintID = p.TargetComplaintID
		rec.SignedAt = rec.SignedAt.UTC()
		p.Signatures = append(p.Signatures, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return p, nil
}

func scanPool(row pgx.Row) (*models.Pool, int, error) {
	var (
		p         models.Pool
		id        uuid.UUID
		target    uuid.UUID
		region    string
		status    string
		root      *string
		leafCount int
	)
	err := row.Scan(&id, &region, &target, &status, &p.TotalWeight, &leafCount, &root, &p.OpenedAt, &p.SealedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("scan pool: %w", err)
	}
	p.ID = domain.PoolID(id)
	p.RegionSlug = domain.RegionSlug(region)
	p.TargetComplaintID = domain.ComplaintID(target)
	p.Status = models.Status(status)
	if root != nil {
		p.MerkleRoot = domain.HexDigest(*root)
	}
	p.OpenedAt = p.OpenedAt.UTC()
	if p.SealedAt != nil {
		t := p.SealedAt.UTC()
		p.SealedAt = &t
	}
	return &p, leafCount, nil
}
