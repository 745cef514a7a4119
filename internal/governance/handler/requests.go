package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"civictrust/internal/governance/models"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// IngestRequest is the body for POST /v1/pools/{poolID}/signatures. It is
// used by trusted integrations that already derived the leaf hash.
type IngestRequest struct {
	CitizenID         string     `json:"citizen_id" validate:"required,uuid"`
	AssuranceLevel    string     `json:"assurance_level" validate:"required"`
	RegionSlug        string     `json:"region_slug" validate:"required,max=64"`
	TargetComplaintID string     `json:"target_complaint_id" validate:"required,uuid"`
	LeafHash          string     `json:"leaf_hash" validate:"required,len=64,hexadecimal"`
	SignedAt          *time.Time `json:"signed_at,omitempty"`

	intent models.SignatureIntent
}

func (r *IngestRequest) Normalize() {
	r.CitizenID = strings.TrimSpace(r.CitizenID)
	r.AssuranceLevel = strings.TrimSpace(r.AssuranceLevel)
	r.RegionSlug = strings.ToLower(strings.TrimSpace(r.RegionSlug))
	r.TargetComplaintID = strings.TrimSpace(r.TargetComplaintID)
	r.LeafHash = strings.TrimSpace(r.LeafHash)
}

func (r *IngestRequest) Validate() error {
	citizen, err := domain.ParseCitizenID(r.CitizenID)
	if err != nil {
		return err
	}
	target, err := domain.ParseComplaintID(r.TargetComplaintID)
	if err != nil {
		return err
	}
	region, err := domain.ParseRegionSlug(r.RegionSlug)
	if err != nil {
		return err
	}
	// Unknown levels pass through so the pool reports the configuration gap.
	level := domain.AssuranceLevel(strings.ToUpper(r.AssuranceLevel))
	r.intent = models.SignatureIntent{
		CitizenID:         citizen,
		AssuranceLevel:    level,
		RegionSlug:        region,
		TargetComplaintID: target,
		LeafHash:          domain.HexDigest(r.LeafHash),
	}
	if r.SignedAt != nil {
		r.intent.SignedAt = r.SignedAt.UTC()
	}
	return nil
}

// Intent returns the validated intent. signedAt fills a missing timestamp.
func (r *IngestRequest) Intent(signedAt time.Time) models.SignatureIntent {
	in := r.intent
	if in.SignedAt.IsZero() {
		in.SignedAt = signedAt.UTC()
	}
	return in
}

// EndorseRequest is the optional body for POST
// /v1/complaints/{complaintID}/endorsements.
type EndorseRequest struct {
	RegionHint string `json:"region_hint" validate:"max=64"`
}

func (r *EndorseRequest) Normalize() {
	r.RegionHint = strings.ToLower(strings.TrimSpace(r.RegionHint))
}

// parseListFilter reads ?region=&status=&limit= for GET /v1/pools. region
// may repeat.
func parseListFilter(q url.Values) (models.ListFilter, error) {
	filter := models.ListFilter{Limit: defaultListLimit}
	regions, err := domain.ParseRegionSlugs(q["region"])
	if err != nil {
		return models.ListFilter{}, err
	}
	filter.Regions = regions
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return models.ListFilter{}, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxListLimit)
		}
		filter.Limit = n
	}
	return filter, nil
}
