package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"civictrust/internal/privilege/service"
	"civictrust/internal/standing"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
	"civictrust/pkg/requestcontext"
)

// Service defines the privilege operations exposed over HTTP.
type Service interface {
	Resolve(ctx context.Context, role domain.Role, reputation int, assurance domain.AssuranceLevel) *service.Resolution
	ResolveForCitizen(ctx context.Context, id domain.CitizenID) (*service.Resolution, error)
}

// Handler wires privilege endpoints to the privilege service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts privilege endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/privileges", h.HandleResolve)
	r.Get("/v1/citizens/{citizenID}/privileges", h.HandleResolveForCitizen)
}

// HandleResolve handles GET /v1/privileges?role=&reputation=&assurance=.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	role, err := domain.ParseRole(q.Get("role"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	reputation, err := parseReputation(q.Get("reputation"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	assurance, err := domain.ParseAssuranceLevel(q.Get("assurance"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.service.Resolve(ctx, role, reputation, assurance))
}

// HandleResolveForCitizen handles GET /v1/citizens/{citizenID}/privileges.
func (h *Handler) HandleResolveForCitizen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	res, err := h.service.ResolveForCitizen(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "privilege resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"citizen_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func parseReputation(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "reputation is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "reputation must be an integer")
	}
	if n < standing.MinScore || n > standing.MaxScore {
		return 0, dErrors.Newf(dErrors.CodeValidation, "reputation must be within [%d, %d]", standing.MinScore, standing.MaxScore)
	}
	return n, nil
}
