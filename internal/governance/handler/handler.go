package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civictrust/internal/governance/models"
	"civictrust/internal/governance/service"
	"civictrust/internal/ledger/merkle"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
	"civictrust/pkg/requestcontext"
)

// Service defines the pool operations exposed over HTTP.
type Service interface {
	IngestSignature(ctx context.Context, poolID domain.PoolID, intent models.SignatureIntent) (*models.Snapshot, error)
	SealPool(ctx context.Context, poolID domain.PoolID) (*merkle.SealResult, error)
	Endorse(ctx context.Context, cmd service.EndorseCommand) (*service.EndorsementResult, error)
	GetPool(ctx context.Context, id domain.PoolID) (*models.Pool, error)
	ListPools(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error)
	Proof(ctx context.Context, poolID domain.PoolID, citizen domain.CitizenID) (*service.ProofResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/pools", h.HandleList)
	r.Get("/v1/pools/{poolID}", h.HandleGet)
	r.Get("/v1/pools/{poolID}/proofs/{citizenID}", h.HandleProof)
}

// RegisterCitizen mounts endpoints that act as the authenticated citizen.
func (h *Handler) RegisterCitizen(r chi.Router) {
	r.Post("/v1/complaints/{complaintID}/endorsements", h.HandleEndorse)
}

// RegisterAdmin mounts pool writes for operators and trusted integrations.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/v1/pools/{poolID}/signatures", h.HandleIngest)
	r.Post("/v1/pools/{poolID}/seal", h.HandleSeal)
}

// HandleIngest handles POST /v1/pools/{poolID}/signatures.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}
	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger)
	if !ok {
		return
	}

	snap, err := h.service.IngestSignature(ctx, poolID, req.Intent(requestcontext.Now(ctx)))
	if err != nil {
		h.logger.WarnContext(ctx, "ingest signature failed",
			"request_id", requestID,
			"pool_id", poolID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

// HandleSeal handles POST /v1/pools/{poolID}/seal.
func (h *Handler) HandleSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	res, err := h.service.SealPool(ctx, poolID)
	if err != nil {
		h.logger.WarnContext(ctx, "seal pool failed",
			"request_id", requestcontext.RequestID(ctx),
			"pool_id", poolID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSeal(poolID.String(), res))
}

// HandleEndorse handles POST /v1/complaints/{complaintID}/endorsements. The
// signer is the authenticated citizen; the body is optional.
func (h *Handler) HandleEndorse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	citizen := requestcontext.CitizenID(ctx)
	if citizen.IsNil() {
		httputil.WriteError(w, dErrors.Correlate(dErrors.New(dErrors.CodeUnauthorized, "citizen token required"), requestID))
		return
	}
	complaint, err := domain.ParseComplaintID(chi.URLParam(r, "complaintID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}

	req := &EndorseRequest{}
	if r.ContentLength != 0 {
		decoded, err := httputil.Decode[EndorseRequest](r)
		if err != nil && !errors.Is(err, io.EOF) {
			httputil.WriteError(w, dErrors.Correlate(err, requestID))
			return
		}
		if decoded != nil {
			req = decoded
		}
	}

	res, err := h.service.Endorse(ctx, service.EndorseCommand{
		CitizenID:   citizen,
		ComplaintID: complaint,
		RegionHint:  req.RegionHint,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "endorsement failed",
			"request_id", requestID,
			"citizen_id", citizen.String(),
			"complaint_id", complaint.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleGet handles GET /v1/pools/{poolID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	pool, err := h.service.GetPool(ctx, poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPool(pool))
}

// HandleList handles GET /v1/pools.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	pools, err := h.service.ListPools(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if pools == nil {
		pools = []models.Snapshot{}
	}
	httputil.WriteJSON(w, http.StatusOK, PoolListResponse{Pools: pools, Count: len(pools)})
}

// HandleProof handles GET /v1/pools/{poolID}/proofs/{citizenID}.
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	poolID, err := domain.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}
	citizen, err := domain.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestID))
		return
	}
	proof, err := h.service.Proof(ctx, poolID, citizen)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proof)
}
