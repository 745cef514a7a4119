package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"civictrust/pkg/domain"
	"civictrust/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*Claims, error) {
	return s.claims, s.err
}

type stubRevocations struct {
	revoked bool
	err     error
}

func (s stubRevocations) IsTokenRevoked(context.Context, string) (bool, error) {
	return s.revoked, s.err
}

func TestRequireCitizen(t *testing.T) {
	citizen := domain.CitizenID(uuid.New())
	valid := stubValidator{claims: &Claims{CitizenID: citizen, JTI: "jti-1"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		header      string
		validator   TokenValidator
		revocations RevocationChecker
		wantStatus  int
	}{
		{name: "valid token", header: "Bearer tok", validator: valid, wantStatus: http.StatusNoContent},
		{name: "missing header", validator: valid, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic tok", validator: valid, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer tok", validator: stubValidator{err: errors.New("bad signature")}, wantStatus: http.StatusUnauthorized},
		{name: "revoked token", header: "Bearer tok", validator: valid, revocations: stubRevocations{revoked: true}, wantStatus: http.StatusUnauthorized},
		{name: "revocation store down", header: "Bearer tok", validator: valid, revocations: stubRevocations{err: errors.New("timeout")}, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen domain.CitizenID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = requestcontext.CitizenID(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/v1/complaints/x/endorsements", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireCitizen(tt.validator, tt.revocations, logger)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, citizen, seen)
			}
		})
	}
}
