// Package ports declares what the pool orchestrator consumes from the rest
// of the system. Adapters live in governance/adapters and governance/jobs.
package ports

import (
	"context"
	"time"

	"civictrust/internal/geography"
	"civictrust/pkg/domain"
)

// CitizenDirectory loads what an endorsement needs to know about the signer.
type CitizenDirectory interface {
	// Profile returns the citizen's privilege inputs and anchor. A missing
	// citizen is a CodeNotFound domain error.
	Profile(ctx context.Context, id domain.CitizenID) (*CitizenProfile, error)
}

// CitizenProfile is the port model for a signer.
type CitizenProfile struct {
	CitizenID       domain.CitizenID
	Role            domain.Role
	ReputationScore int
	AssuranceLevel  domain.AssuranceLevel
	// Anchor is nil when the citizen registered without a locality.
	Anchor *geography.Anchor
}

// SealScheduler queues a seal to run outside the request that crossed the
// quorum.
type SealScheduler interface {
	ScheduleSeal(ctx context.Context, poolID domain.PoolID) error
}

// SealAnnouncer publishes the public proof of a sealed pool.
type SealAnnouncer interface {
	AnnounceSeal(ctx context.Context, a SealAnnouncement) error
}

// SealAnnouncement is the message published once a pool is sealed.
type SealAnnouncement struct {
	PoolID            domain.PoolID      `json:"pool_id"`
	RegionSlug        domain.RegionSlug  `json:"region_slug"`
	TargetComplaintID domain.ComplaintID `json:"target_complaint_id"`
	MerkleRoot        domain.HexDigest   `json:"merkle_root"`
	LeafCount         int                `json:"leaf_count"`
	TotalWeight       int                `json:"total_weight"`
	SealedAt          time.Time          `json:"sealed_at"`
}
