package jwttoken

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
)

const maxTokenTTL = 24 * time.Hour

// Revoker records revoked token IDs.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// Handler exposes token issuance and revocation to operators.
type Handler struct {
	tokens  *JWTService
	revoker Revoker
	logger  *slog.Logger
}

// NewHandler builds the admin token handler. revoker may be nil, in which
// case the revocation route is not registered.
func NewHandler(tokens *JWTService, revoker Revoker, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, revoker: revoker, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/admin/tokens", h.HandleIssue)
	if h.revoker != nil {
		r.Post("/v1/admin/tokens/revocations", h.HandleRevoke)
	}
}

type IssueRequest struct {
	CitizenID  string `json:"citizen_id" validate:"required,uuid"`
	TTLSeconds int    `json:"ttl_seconds" validate:"omitempty,min=60"`
}

func (r *IssueRequest) ttl() time.Duration {
	if r.TTLSeconds == 0 {
		return time.Hour
	}
	return min(time.Duration(r.TTLSeconds)*time.Second, maxTokenTTL)
}

type RevokeRequest struct {
	JTI       string    `json:"jti" validate:"required,uuid"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}
	citizenID, err := domain.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issued, err := h.tokens.IssueCitizenToken(citizenID, req.ttl())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "citizen token issued",
		"citizen_id", citizenID.String(),
		"jti", issued.JTI,
		"expires_at", issued.ExpiresAt,
	)
	httputil.WriteJSON(w, http.StatusCreated, issued)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.revoker.Revoke(r.Context(), req.JTI, req.ExpiresAt); err != nil {
		h.logger.ErrorContext(r.Context(), "token revocation failed", "jti", req.JTI, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to revoke token"))
		return
	}
	h.logger.InfoContext(r.Context(), "citizen token revoked", "jti", req.JTI)
	w.WriteHeader(http.StatusNoContent)
}
