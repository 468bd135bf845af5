package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type ScoresHandler struct {
	svc    *admin.Service
	logger *slog.Logger
}

func NewScoresHandler(svc *admin.Service, logger *slog.Logger) *ScoresHandler {
	return &ScoresHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/scores?year=&country_id=&indicator_id=&limit=&offset=
func (h *ScoresHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.ScoreFilter
	var err error
	if filter.Year, err = queryInt(r, "year"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if filter.CountryID, err = queryInt64(r, "country_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if filter.IndicatorID, err = queryInt64(r, "indicator_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v, err := queryInt(r, key)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if v != nil {
			*dst = *v
		}
	}

	scores, err := h.svc.ListScores(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if scores == nil {
		scores = []*store.Score{}
	}
	writeJSON(w, http.StatusOK, scores)
}

// Create handles POST /api/v1/scores
func (h *ScoresHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req admin.ScoreInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	sc, err := h.svc.CreateScore(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// Save handles PUT /api/v1/scores: add or update by (country, indicator, year).
func (h *ScoresHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req admin.ScoreInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	sc, err := h.svc.SaveScore(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type updateScoreRequest struct {
	Score float64 `json:"score" validate:"min=0,max=100"`
}

// Update handles PUT /api/v1/scores/{id}
func (h *ScoresHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req updateScoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	sc, err := h.svc.UpdateScore(r.Context(), id, req.Score)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// Delete handles DELETE /api/v1/scores/{id}
func (h *ScoresHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.DeleteScore(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	Year   int                   `json:"year" validate:"required,min=1900,max=2200"`
	Scores []admin.ImportedScore `json:"scores" validate:"required,min=1,dive"`
}

// Import handles POST /api/v1/scores/import
func (h *ScoresHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	scores, err := h.svc.ImportScores(r.Context(), req.Year, req.Scores)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"year": req.Year, "imported": len(scores), "scores": scores})
}
