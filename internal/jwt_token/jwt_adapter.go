package jwttoken

import (
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	authmw "civictrust/pkg/platform/middleware/auth"
)

// MiddlewareAdapter exposes JWTService as the auth middleware's validator.
type MiddlewareAdapter struct {
	service *JWTService
}

func NewMiddlewareAdapter(service *JWTService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	citizenID, err := domain.ParseCitizenID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a citizen")
	}
	return &authmw.Claims{CitizenID: citizenID, JTI: claims.ID}, nil
}
