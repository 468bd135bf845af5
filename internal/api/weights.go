package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

type WeightsHandler struct {
	svc    *admin.Service
	logger *slog.Logger
}

func NewWeightsHandler(svc *admin.Service, logger *slog.Logger) *WeightsHandler {
	return &WeightsHandler{svc: svc, logger: logger}
}

// scope reads the weight scope from the route: /dimensions/{dimensionID}/{year}
// addresses a dimension's indicator weights, /years/{year} a year's
// dimension weights.
func scope(r *http.Request) (weights.Scope, error) {
	year, err := yearParam(r)
	if err != nil {
		return weights.Scope{}, err
	}
	if chi.URLParam(r, "dimensionID") != "" {
		dimensionID, err := idParam(r, "dimensionID")
		if err != nil {
			return weights.Scope{}, err
		}
		return weights.IndicatorScope(dimensionID, year), nil
	}
	return weights.DimensionScope(year), nil
}

// Total handles GET /api/v1/weights/.../total
func (h *WeightsHandler) Total(w http.ResponseWriter, r *http.Request) {
	sc, err := scope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	t, err := h.svc.WeightTotal(r.Context(), sc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Normalize handles POST /api/v1/weights/.../normalize[?force=true]
func (h *WeightsHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	sc, err := scope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.svc.NormalizeWeights(r.Context(), sc, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NormalizeAll handles POST /api/v1/weights/normalize[?force=true]
func (h *WeightsHandler) NormalizeAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.NormalizeAllWeights(r.Context(), force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if res == nil {
		res = []*weights.Result{}
	}
	writeJSON(w, http.StatusOK, res)
}

// Equalize handles POST /api/v1/weights/.../equalize[?force=true]
func (h *WeightsHandler) Equalize(w http.ResponseWriter, r *http.Request) {
	sc, err := scope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.svc.DistributeWeights(r.Context(), sc, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Validate handles GET /api/v1/weights/years/{year}/validate
func (h *WeightsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.svc.ValidateYear(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
