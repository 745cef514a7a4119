package models

import (
	"slices"
	"strings"
	"time"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

// Status is the lifecycle state of a signature pool.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusSealed Status = "SEALED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusOpen, StatusSealed:
		return st, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "status is required")
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown pool status %q", s)
	}
}

// CanTransitionTo reports whether next is reachable from s. SEALED is
// terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusOpen && next == StatusSealed
}

func (s Status) String() string { return string(s) }

// SignatureRecord is one accepted endorsement.
type SignatureRecord struct {
	Seq               int                   `json:"seq"`
	CitizenID         domain.CitizenID      `json:"citizen_id"`
	AssuranceLevel    domain.AssuranceLevel `json:"assurance_level"`
	RegionSlug        domain.RegionSlug     `json:"region_slug"`
	TargetComplaintID domain.ComplaintID    `json:"target_complaint_id"`
	LeafHash          domain.HexDigest      `json:"leaf_hash"`
	Weight            int                   `json:"weight"`
	SignedAt          time.Time             `json:"signed_at"`
}

// Pool aggregates weighted signatures for one (region, target) pair.
//
// Invariants:
//   - ID == domain.PoolIDFor(RegionSlug, TargetComplaintID)
//   - TotalWeight is the sum of signature weights
//   - at most one signature per citizen
//   - once SEALED, Signatures, TotalWeight and MerkleRoot never change
type Pool struct {
	ID                domain.PoolID
	RegionSlug        domain.RegionSlug
	TargetComplaintID domain.ComplaintID
	Status            Status
	TotalWeight       int
	Signatures        []SignatureRecord
	MerkleRoot        domain.HexDigest
	OpenedAt          time.Time
	SealedAt          *time.Time
}

// NewPool opens an empty pool for region and target.
func NewPool(region domain.RegionSlug, target domain.ComplaintID, now time.Time) *Pool {
	return &Pool{
		ID:                domain.PoolIDFor(region, target),
		RegionSlug:        region,
		TargetComplaintID: target,
		Status:            StatusOpen,
		OpenedAt:          now,
	}
}

func (p *Pool) IsSealed() bool { return p.Status == StatusSealed }

func (p *Pool) LeafCount() int { return len(p.Signatures) }

func (p *Pool) HasSigner(id domain.CitizenID) bool {
	return slices.ContainsFunc(p.Signatures, func(r SignatureRecord) bool { return r.CitizenID == id })
}

// CanIngest checks whether rec may be appended.
func (p *Pool) CanIngest(rec SignatureRecord) error {
	if p.IsSealed() {
		return dErrors.New(dErrors.CodeIllegalStateTransition, "pool is sealed").
			WithRemediation("open a new complaint target; sealed pools are immutable")
	}
	if rec.RegionSlug != p.RegionSlug || rec.TargetComplaintID != p.TargetComplaintID {
		return dErrors.New(dErrors.CodeValidation, "signature does not belong to this pool")
	}
	if p.HasSigner(rec.CitizenID) {
		return dErrors.New(dErrors.CodeDuplicateEndorsement, "citizen already endorsed this complaint")
	}
	return nil
}

// Ingest appends rec in arrival order. Call CanIngest first.
func (p *Pool) Ingest(rec SignatureRecord) {
	rec.Seq = len(p.Signatures)
	p.Signatures = append(p.Signatures, rec)
	p.TotalWeight += rec.Weight
}

// CanSeal checks the OPEN to SEALED transition.
func (p *Pool) CanSeal() error {
	if !p.Status.CanTransitionTo(StatusSealed) {
		return dErrors.New(dErrors.CodeIllegalStateTransition, "pool already sealed")
	}
	if len(p.Signatures) == 0 {
		return dErrors.New(dErrors.CodeIllegalStateTransition, "cannot seal empty block").
			WithRemediation("wait for at least one signature before sealing")
	}
	return nil
}

// Seal freezes the pool under root. Call CanSeal first.
func (p *Pool) Seal(root domain.HexDigest, at time.Time) {
	p.Status = StatusSealed
	p.MerkleRoot = root
	p.SealedAt = &at
}

// LeafHashes returns the leaf hashes in arrival order.
func (p *Pool) LeafHashes() []domain.HexDigest {
	out := make([]domain.HexDigest, len(p.Signatures))
	for i, s := range p.Signatures {
		out[i] = s.LeafHash
	}
	return out
}

// SignatureOf returns the citizen's record and its leaf index.
func (p *Pool) SignatureOf(id domain.CitizenID) (SignatureRecord, bool) {
	for _, s := range p.Signatures {
		if s.CitizenID == id {
			return s, true
		}
	}
	return SignatureRecord{}, false
}

// Clone returns a deep copy safe to hand to callers.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.Signatures = slices.Clone(p.Signatures)
	if p.SealedAt != nil {
		t := *p.SealedAt
		cp.SealedAt = &t
	}
	return &cp
}

// Snapshot is the read projection returned by pool operations.
type Snapshot struct {
	PoolID            domain.PoolID      `json:"pool_id"`
	RegionSlug        domain.RegionSlug  `json:"region_slug"`
	TargetComplaintID domain.ComplaintID `json:"target_complaint_id"`
	Status            Status             `json:"status"`
	TotalWeight       int                `json:"total_weight"`
	SignatureCount    int                `json:"signature_count"`
	MerkleRoot        domain.HexDigest   `json:"merkle_root,omitempty"`
	OpenedAt          time.Time          `json:"opened_at"`
	SealedAt          *time.Time         `json:"sealed_at,omitempty"`
}

func (p *Pool) Snapshot() Snapshot {
	return Snapshot{
		PoolID:            p.ID,
		RegionSlug:        p.RegionSlug,
		TargetComplaintID: p.TargetComplaintID,
		Status:            p.Status,
		TotalWeight:       p.TotalWeight,
		SignatureCount:    len(p.Signatures),
		MerkleRoot:        p.MerkleRoot,
		OpenedAt:          p.OpenedAt,
		SealedAt:          p.SealedAt,
	}
}

// ListFilter narrows pool listings. Zero fields match everything.
type ListFilter struct {
	Regions []domain.RegionSlug
	Status  Status
	Limit   int
}

func (f ListFilter) Matches(p *Pool) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if len(f.Regions) > 0 && !slices.Contains(f.Regions, p.RegionSlug) {
		return false
	}
	return true
}
