package models

import (
	"encoding/json"
	"time"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

// SignatureIntent is a request to add a signature to a pool.
type SignatureIntent struct {
	CitizenID         domain.CitizenID
	AssuranceLevel    domain.AssuranceLevel
	RegionSlug        domain.RegionSlug
	TargetComplaintID domain.ComplaintID
	LeafHash          domain.HexDigest
	SignedAt          time.Time
}

// Record validates the intent and weighs it by assurance level.
func (i SignatureIntent) Record() (SignatureRecord, error) {
	if i.CitizenID.IsNil() {
		return SignatureRecord{}, dErrors.New(dErrors.CodeValidation, "citizen_id is required")
	}
	if i.TargetComplaintID.IsNil() {
		return SignatureRecord{}, dErrors.New(dErrors.CodeValidation, "target_complaint_id is required")
	}
	if _, err := domain.ParseRegionSlug(string(i.RegionSlug)); err != nil {
		return SignatureRecord{}, err
	}
	leaf, err := domain.ParseHexDigest(string(i.LeafHash))
	if err != nil {
		return SignatureRecord{}, err
	}
	weight, ok := i.AssuranceLevel.Weight()
	if !ok {
		return SignatureRecord{}, dErrors.Newf(dErrors.CodeConfigurationGap, "assurance level %q has no signature weight", i.AssuranceLevel).
			WithRemediation("use UNVERIFIED, DOCUMENT_VERIFIED or SOVEREIGN_VERIFIED")
	}
	return SignatureRecord{
		CitizenID:         i.CitizenID,
		AssuranceLevel:    i.AssuranceLevel,
		RegionSlug:        i.RegionSlug,
		TargetComplaintID: i.TargetComplaintID,
		LeafHash:          leaf,
		Weight:            weight,
		SignedAt:          i.SignedAt.UTC(),
	}, nil
}

// leafDocument is the canonical form hashed into a signature leaf. Field
// order is fixed by the struct, so json.Marshal is deterministic.
type leafDocument struct {
	CitizenID         string `json:"citizen_id"`
	TargetComplaintID string `json:"target_complaint_id"`
	RegionSlug        string `json:"region_slug"`
	AssuranceLevel    string `json:"assurance_level"`
	SignedAt          string `json:"signed_at"`
}

// LeafHash derives the SHA-256 leaf for an endorsement from its canonical
// JSON document.
func LeafHash(citizen domain.CitizenID, target domain.ComplaintID, region domain.RegionSlug, level domain.AssuranceLevel, signedAt time.Time) (domain.HexDigest, error) {
	doc := leafDocument{
		CitizenID:         citizen.String(),
		TargetComplaintID: target.String(),
		RegionSlug:        string(region),
		AssuranceLevel:    string(level),
		SignedAt:          signedAt.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptographicFailure, "failed to encode signature leaf")
	}
	return domain.SumSHA256(b), nil
}
