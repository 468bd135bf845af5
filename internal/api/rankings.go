package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type RankingsHandler struct {
	svc    *admin.Service
	logger *slog.Logger
}

func NewRankingsHandler(svc *admin.Service, logger *slog.Logger) *RankingsHandler {
	return &RankingsHandler{svc: svc, logger: logger}
}

// Years handles GET /api/v1/rankings/years
func (h *RankingsHandler) Years(w http.ResponseWriter, r *http.Request) {
	years, err := h.svc.RankedYears(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

// Get handles GET /api/v1/rankings/{year}
func (h *RankingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ranking, err := h.svc.YearRanking(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// Standings handles GET /api/v1/rankings/{year}/standings?limit=
func (h *RankingsHandler) Standings(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	standings, err := h.svc.Standings(r.Context(), year, n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// Generate handles POST /api/v1/rankings/{year}/generate
func (h *RankingsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ranking, err := h.svc.GenerateRanking(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ranking)
}

// Delete handles DELETE /api/v1/rankings/{year}
func (h *RankingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	del, err := h.svc.DeleteRankingByYear(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, del)
}

// DimensionScores handles GET /api/v1/rankings/{year}/dimension-scores
func (h *RankingsHandler) DimensionScores(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ds, err := h.svc.DimensionScoresByYear(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ds == nil {
		ds = []*store.DimensionScore{}
	}
	writeJSON(w, http.StatusOK, ds)
}
