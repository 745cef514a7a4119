package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civictrust/internal/identity/models"
	"civictrust/internal/identity/service"
	"civictrust/internal/standing"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
	"civictrust/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (*models.Citizen, error)
	Get(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)
	ApplyImpact(ctx context.Context, id domain.CitizenID, ev standing.ImpactEvent) (*service.ImpactOutcome, error)
}

// Handler wires citizen endpoints to the identity service.
type Handler struct {
	service  Service
	registry *standing.Registry
	logger   *slog.Logger
}

// New constructs an identity handler. registry is used to reject impact
// types with no registered weight at the boundary.
func New(service Service, registry *standing.Registry, logger *slog.Logger) *Handler {
	if registry == nil {
		registry = standing.NewRegistry()
	}
	return &Handler{service: service, registry: registry, logger: logger}
}

// Register mounts read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/citizens/{citizenID}", h.HandleGet)
}

// RegisterAdmin mounts endpoints that change identities or standing. The
// caller is responsible for guarding r.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/citizens", h.HandleRegister)
	r.Post("/v1/citizens/{citizenID}/impacts", h.HandleApplyImpact)
}

// HandleRegister handles POST /v1/citizens.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.service.Register(ctx, req.Command())
	if err != nil {
		h.logger.WarnContext(ctx, "citizen registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCitizen(c))
}

// HandleGet handles GET /v1/citizens/{citizenID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	c, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCitizen(c))
}

// HandleApplyImpact handles POST /v1/citizens/{citizenID}/impacts.
func (h *Handler) HandleApplyImpact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ImpactRequest](w, r, h.logger)
	if !ok {
		return
	}
	ev, err := req.Event(h.registry)
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}

	out, err := h.service.ApplyImpact(ctx, id, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "apply impact failed",
			"request_id", requestID,
			"citizen_id", id.String(),
			"impact_type", ev.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
