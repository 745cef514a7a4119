package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

// CitizenClaims are the claims of a citizen access token. The subject is the
// citizen ID.
type CitizenClaims struct {
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 citizen tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// IssuedToken is a signed token and the facts needed to revoke it later.
type IssuedToken struct {
	Token     string    `json:"access_token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *JWTService) IssueCitizenToken(citizenID domain.CitizenID, expiresIn time.Duration) (*IssuedToken, error) {
	if citizenID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "citizen id is required")
	}
	now := s.now()
	expiresAt := now.Add(expiresIn)
	jti := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CitizenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   citizenID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt.UTC()}, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*CitizenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &CitizenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*CitizenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
