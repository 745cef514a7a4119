package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"civictrust/internal/standing"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
	"civictrust/pkg/requestcontext"
)

// Handler exposes the pure calculator. Nothing is persisted.
type Handler struct {
	calculator *standing.Calculator
	logger     *slog.Logger
}

func New(calculator *standing.Calculator, logger *slog.Logger) *Handler {
	if calculator == nil {
		calculator = standing.NewCalculator(nil)
	}
	return &Handler{calculator: calculator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/standing/impacts", h.HandleApplyImpact)
	r.Get("/v1/standing/impact-types", h.HandleListImpactTypes)
}

// ApplyImpactRequest is the body for POST /v1/standing/impacts.
type ApplyImpactRequest struct {
	CurrentScore     *int     `json:"current_score" validate:"required"`
	ImpactType       string   `json:"impact_type" validate:"required"`
	NeuralMultiplier *float64 `json:"neural_multiplier" validate:"required"`
}

func (r *ApplyImpactRequest) Normalize() {
	r.ImpactType = strings.TrimSpace(r.ImpactType)
}

func (r *ApplyImpactRequest) Validate() error {
	if *r.CurrentScore < standing.MinScore || *r.CurrentScore > standing.MaxScore {
		return dErrors.Newf(dErrors.CodeValidation, "current_score must be within [%d, %d]", standing.MinScore, standing.MaxScore)
	}
	return nil
}

// ApplyImpactResponse reports the computed score.
type ApplyImpactResponse struct {
	PreviousScore int    `json:"previous_score"`
	Score         int    `json:"score"`
	Delta         int    `json:"delta"`
	Saturated     bool   `json:"saturated"`
	ImpactType    string `json:"impact_type"`
}

// HandleApplyImpact handles POST /v1/standing/impacts. Unknown impact types
// are rejected here rather than silently contributing zero.
func (h *Handler) HandleApplyImpact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ApplyImpactRequest](w, r, h.logger)
	if !ok {
		return
	}
	t, err := h.calculator.Registry().Parse(req.ImpactType)
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	ev, err := standing.NewImpactEvent(t, *req.NeuralMultiplier)
	if err != nil {
		httputil.WriteError(w, dErrors.Correlate(err, requestcontext.RequestID(ctx)))
		return
	}
	res := h.calculator.Apply(*req.CurrentScore, ev)
	httputil.WriteJSON(w, http.StatusOK, &ApplyImpactResponse{
		PreviousScore: res.Previous,
		Score:         res.Score,
		Delta:         res.Delta,
		Saturated:     res.Saturated,
		ImpactType:    string(t),
	})
}

// ImpactTypeResponse is one registry entry.
type ImpactTypeResponse struct {
	ImpactType string `json:"impact_type"`
	Weight     int    `json:"weight"`
}

// HandleListImpactTypes handles GET /v1/standing/impact-types.
func (h *Handler) HandleListImpactTypes(w http.ResponseWriter, _ *http.Request) {
	reg := h.calculator.Registry()
	types := reg.Types()
	out := make([]ImpactTypeResponse, 0, len(types))
	for _, t := range types {
		weight, _ := reg.Weight(t)
		out = append(out, ImpactTypeResponse{ImpactType: string(t), Weight: weight})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
