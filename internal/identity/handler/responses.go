package handler

import (
	"time"

	"civictrust/internal/identity/models"
)

// CitizenResponse is the public view of a citizen.
type CitizenResponse struct {
	CitizenID       string     `json:"citizen_id"`
	Role            string     `json:"role"`
	ReputationScore int        `json:"reputation_score"`
	AssuranceLevel  string     `json:"assurance_level"`
	GeoAnchor       *GeoAnchor `json:"geo_anchor,omitempty"`
	Version         int64      `json:"version"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func FromCitizen(c *models.Citizen) *CitizenResponse {
	resp := &CitizenResponse{
		CitizenID:       c.ID.String(),
		Role:            string(c.Role),
		ReputationScore: c.ReputationScore,
		AssuranceLevel:  string(c.AssuranceLevel),
		Version:         c.Version,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.GeoAnchor != nil {
		resp.GeoAnchor = &GeoAnchor{Country: c.GeoAnchor.Country, Locality: c.GeoAnchor.Locality}
	}
	return resp
}
