package handler

import (
	"strings"

	"civictrust/internal/identity/models"
	"civictrust/internal/identity/service"
	"civictrust/internal/standing"
	"civictrust/pkg/domain"
)

// RegisterRequest is the body for POST /v1/citizens.
type RegisterRequest struct {
	CitizenID      string     `json:"citizen_id" validate:"omitempty,uuid"`
	Role           string     `json:"role" validate:"required"`
	AssuranceLevel string     `json:"assurance_level" validate:"required"`
	GeoAnchor      *GeoAnchor `json:"geo_anchor,omitempty"`

	id        domain.CitizenID
	role      domain.Role
	assurance domain.AssuranceLevel
}

// GeoAnchor is the optional location of a citizen.
type GeoAnchor struct {
	Country  string `json:"country" validate:"max=64"`
	Locality string `json:"locality" validate:"max=128"`
}

func (r *RegisterRequest) Normalize() {
	r.CitizenID = strings.TrimSpace(r.CitizenID)
	r.Role = strings.TrimSpace(r.Role)
	r.AssuranceLevel = strings.TrimSpace(r.AssuranceLevel)
}

func (r *RegisterRequest) Validate() error {
	if r.CitizenID != "" {
		id, err := domain.ParseCitizenID(r.CitizenID)
		if err != nil {
			return err
		}
		r.id = id
	}
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return err
	}
	r.role = role
	level, err := domain.ParseAssuranceLevel(r.AssuranceLevel)
	if err != nil {
		return err
	}
	r.assurance = level
	return nil
}

// Command converts the validated request to a service command.
func (r *RegisterRequest) Command() service.RegisterCommand {
	cmd := service.RegisterCommand{ID: r.id, Role: r.role, Assurance: r.assurance}
	if r.GeoAnchor != nil {
		cmd.GeoAnchor = &models.GeoAnchor{Country: r.GeoAnchor.Country, Locality: r.GeoAnchor.Locality}
	}
	return cmd
}

// ImpactRequest is the body for impact endpoints.
type ImpactRequest struct {
	ImpactType       string   `json:"impact_type" validate:"required"`
	NeuralMultiplier *float64 `json:"neural_multiplier" validate:"required"`
}

func (r *ImpactRequest) Normalize() {
	r.ImpactType = strings.TrimSpace(r.ImpactType)
}

// Event parses the impact type strictly against reg and builds the event.
// Unknown types are a configuration gap at the boundary.
func (r *ImpactRequest) Event(reg *standing.Registry) (standing.ImpactEvent, error) {
	t, err := reg.Parse(r.ImpactType)
	if err != nil {
		return standing.ImpactEvent{}, err
	}
	return standing.NewImpactEvent(t, *r.NeuralMultiplier)
}
