package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"civictrust/internal/governance/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
)

const (
	redisPrefix   = "civictrust:"
	redisIndexKey = redisPrefix + "pools"
)

// Script results below zero are refusals.
const (
	resultSealed    = -1
	resultDuplicate = -2
	resultNotFound  = -3
	resultMoved     = -4
	resultFull      = -5
)

// appendScript is the append-if-not-duplicate-and-not-sealed primitive. It
// replies {leaf_count, total_weight} as they stand after the append, or
// {refusal}.
//
// KEYS: pool hash, signature list, target signer set, pool index
// ARGV: id, region, target, opened_at, citizen, weight, record json, index score, max leaves
var appendScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'SEALED' then return {-1} end
if redis.call('SISMEMBER', KEYS[3], ARGV[5]) == 1 then return {-2} end
local max = tonumber(ARGV[9])
if status and max > 0 and tonumber(redis.call('HGET', KEYS[1], 'leaf_count')) >= max then return {-5} end
if not status then
  redis.call('HSET', KEYS[1],
    'id', ARGV[1], 'region_slug', ARGV[2], 'target_complaint_id', ARGV[3],
    'status', 'OPEN', 'total_weight', 0, 'leaf_count', 0, 'opened_at', ARGV[4])
  redis.call('ZADD', KEYS[4], ARGV[8], ARGV[1])
end
redis.call('RPUSH', KEYS[2], ARGV[7])
redis.call('SADD', KEYS[3], ARGV[5])
local total = redis.call('HINCRBY', KEYS[1], 'total_weight', ARGV[6])
local count = redis.call('HINCRBY', KEYS[1], 'leaf_count', 1)
return {count, total}
`)

// sealScript flips OPEN to SEALED when the leaf count is unchanged.
//
// KEYS: pool hash
// ARGV: expected leaf count, root, sealed_at
var sealScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return -3 end
if status == 'SEALED' then return -1 end
if tonumber(redis.call('HGET', KEYS[1], 'leaf_count')) ~= tonumber(ARGV[1]) then return -4 end
redis.call('HSET', KEYS[1], 'status', 'SEALED', 'merkle_root', ARGV[2], 'sealed_at', ARGV[3])
return 1
`)

// RedisStore keeps pools in Redis. Both primitives run as Lua scripts, so
// they are atomic across every process sharing the instance. Scripts touch
// several keys and therefore need a single-node deployment.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func poolKey(id domain.PoolID) string             { return redisPrefix + "pool:" + id.String() }
func signaturesKey(id domain.PoolID) string       { return poolKey(id) + ":sigs" }
func signersKey(target domain.ComplaintID) string { return redisPrefix + "signers:" + target.String() }

// Append returns the pool as of this signature even when later signatures
// have already landed: the list is append-only while the pool is open, so
// the first leaf_count entries are exactly the state the script observed.
func (s *RedisStore) Append(ctx context.Context, rec models.SignatureRecord, openedAt time.Time, maxLeaves int) (*models.Pool, error) {
	id := domain.PoolIDFor(rec.RegionSlug, rec.TargetComplaintID)
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}

	res, err := appendScript.Run(ctx, s.client,
		[]string{poolKey(id), signaturesKey(id), signersKey(rec.TargetComplaintID), redisIndexKey},
		id.String(),
		string(rec.RegionSlug),
		rec.TargetComplaintID.String(),
		openedAt.UTC().Format(time.RFC3339Nano),
		rec.CitizenID.String(),
		rec.Weight,
		body,
		openedAt.UnixMilli(),
		maxLeaves,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("append signature: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(res) == 0 {
		return nil, errors.New("append signature: empty reply")
	}
	switch res[0] {
	case resultSealed:
		return nil, sentinel.ErrInvalidState
	case resultDuplicate:
		return nil, sentinel.ErrDuplicate
	case resultFull:
		return nil, sentinel.ErrCapacity
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("append signature: unexpected reply %v", res)
	}

	p, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return asOfAppend(p, int(res[0]), int(res[1]))
}

// asOfAppend rewinds p to the leaf count and weight the append script
// replied with.
func asOfAppend(p *models.Pool, leafCount, totalWeight int) (*models.Pool, error) {
	if leafCount > len(p.Signatures) {
		return nil, fmt.Errorf("pool %s lists %d signatures, append reported %d", p.ID, len(p.Signatures), leafCount)
	}
	p.Signatures = p.Signatures[:leafCount]
	p.TotalWeight = totalWeight
	p.Status = models.StatusOpen
	p.MerkleRoot = ""
	p.SealedAt = nil
	return p, nil
}

func (s *RedisStore) CompareAndSeal(ctx context.Context, id domain.PoolID, expectedLeafCount int, root domain.HexDigest, sealedAt time.Time) (*models.Pool, error) {
	res, err := sealScript.Run(ctx, s.client, []string{poolKey(id)},
		expectedLeafCount,
		string(root),
		sealedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("seal pool: %w: %w", sentinel.ErrUnavailable, err)
	}
	switch res {
	case resultNotFound:
		return nil, sentinel.ErrNotFound
	case resultSealed:
		return nil, sentinel.ErrInvalidState
	case resultMoved:
		return nil, sentinel.ErrConflict
	}
	return s.FindByID(ctx, id)
}

func (s *RedisStore) FindByID(ctx context.Context, id domain.PoolID) (*models.Pool, error) {
	var (
		fields *redis.MapStringStringCmd
		sigs   *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, poolKey(id))
		sigs = pipe.LRange(ctx, signaturesKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load pool: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(fields.Val()) == 0 {
		return nil, sentinel.ErrNotFound
	}
	p, err := decodePool(fields.Val())
	if err != nil {
		return nil, err
	}
	for i, raw := range sigs.Val() {
		var rec models.SignatureRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode signature %d of pool %s: %w", i, id, err)
		}
		rec.Seq = i
		p.Signatures = append(p.Signatures, rec)
	}
	return p, nil
}

func (s *RedisStore) List(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error) {
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pools: %w: %w", sentinel.ErrUnavailable, err)
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, redisPrefix+"pool:"+id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list pools: %w: %w", sentinel.ErrUnavailable, err)
	}

	out := make([]models.Snapshot, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		p, err := decodePool(cmd.Val())
		if err != nil {
			return nil, err
		}
		if !filter.Matches(p) {
			continue
		}
		snap := p.Snapshot()
		snap.SignatureCount, _ = strconv.Atoi(cmd.Val()["leaf_count"])
		out = append(out, snap)
	}
	sortSnapshots(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func decodePool(f map[string]string) (*models.Pool, error) {
	id, err := domain.ParsePoolID(f["id"])
	if err != nil {
		return nil, fmt.Errorf("decode pool id: %w", err)
	}
	target, err := domain.ParseComplaintID(f["target_complaint_id"])
	if err != nil {
		return nil, fmt.Errorf("decode pool target: %w", err)
	}
	weight, err := strconv.Atoi(f["total_weight"])
	if err != nil {
		return nil, fmt.Errorf("decode pool weight: %w", err)
	}
	openedAt, err := time.Parse(time.RFC3339Nano, f["opened_at"])
	if err != nil {
		return nil, fmt.Errorf("decode pool opened_at: %w", err)
	}
	p := &models.Pool{
		ID:                id,
		RegionSlug:        domain.RegionSlug(f["region_slug"]),
		TargetComplaintID: target,
		Status:            models.Status(f["status"]),
		TotalWeight:       weight,
		MerkleRoot:        domain.HexDigest(f["merkle_root"]),
		OpenedAt:          openedAt,
	}
	if raw := f["sealed_at"]; raw != "" {
		sealedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode pool sealed_at: %w", err)
		}
		p.SealedAt = &sealedAt
	}
	return p, nil
}
