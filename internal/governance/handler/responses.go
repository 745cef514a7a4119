package handler

import (
	"time"

	"civictrust/internal/governance/models"
	"civictrust/internal/ledger/merkle"
)

// SignatureResponse is one leaf of a pool.
type SignatureResponse struct {
	Seq            int       `json:"seq"`
	CitizenID      string    `json:"citizen_id"`
	AssuranceLevel string    `json:"assurance_level"`
	LeafHash       string    `json:"leaf_hash"`
	Weight         int       `json:"weight"`
	SignedAt       time.Time `json:"signed_at"`
}

// PoolResponse is the full view of a pool.
type PoolResponse struct {
	models.Snapshot
	Signatures []SignatureResponse `json:"signatures"`
}

func FromPool(p *models.Pool) *PoolResponse {
	resp := &PoolResponse{Snapshot: p.Snapshot(), Signatures: make([]SignatureResponse, 0, len(p.Signatures))}
	for _, s := range p.Signatures {
		resp.Signatures = append(resp.Signatures, SignatureResponse{
			Seq:            s.Seq,
			CitizenID:      s.CitizenID.String(),
			AssuranceLevel: string(s.AssuranceLevel),
			LeafHash:       s.LeafHash.String(),
			Weight:         s.Weight,
			SignedAt:       s.SignedAt,
		})
	}
	return resp
}

// PoolListResponse wraps GET /v1/pools.
type PoolListResponse struct {
	Pools []models.Snapshot `json:"pools"`
	Count int               `json:"count"`
}

// SealResponse reports a committed seal.
type SealResponse struct {
	PoolID     string    `json:"pool_id"`
	MerkleRoot string    `json:"merkle_root"`
	LeafCount  int       `json:"leaf_count"`
	SealedAt   time.Time `json:"sealed_at"`
}

func FromSeal(poolID string, res *merkle.SealResult) *SealResponse {
	return &SealResponse{
		PoolID:     poolID,
		MerkleRoot: res.Root.String(),
		LeafCount:  res.LeafCount,
		SealedAt:   res.SealedAt,
	}
}
