package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
)

// CatalogHandler serves countries, dimensions and indicators.
type CatalogHandler struct {
	svc    *admin.Service
	logger *slog.Logger
}

func NewCatalogHandler(svc *admin.Service, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, logger: logger}
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type weightRequest struct {
	Weight int `json:"weight" validate:"min=0,max=100"`
}

// ListCountries handles GET /api/v1/countries
func (h *CatalogHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCountries(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// GetCountry handles GET /api/v1/countries/{id}
func (h *CatalogHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.GetCountry(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCountry handles POST /api/v1/countries
func (h *CatalogHandler) CreateCountry(w http.ResponseWriter, r *http.Request) {
	var req admin.CountryInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.CreateCountry(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCountry handles PUT /api/v1/countries/{id}
func (h *CatalogHandler) UpdateCountry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req admin.CountryInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.UpdateCountry(r.Context(), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCountry handles DELETE /api/v1/countries/{id}
func (h *CatalogHandler) DeleteCountry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.DeleteCountry(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDimensions handles GET /api/v1/dimensions?year=
func (h *CatalogHandler) ListDimensions(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ds, err := h.svc.ListDimensions(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// DimensionsByYear handles GET /api/v1/dimensions/year/{year}
func (h *CatalogHandler) DimensionsByYear(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ds, err := h.svc.ListDimensions(r.Context(), &year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// GetDimension handles GET /api/v1/dimensions/{id}
func (h *CatalogHandler) GetDimension(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.GetDimension(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateDimension handles POST /api/v1/dimensions[?force=true]
func (h *CatalogHandler) CreateDimension(w http.ResponseWriter, r *http.Request) {
	var req admin.DimensionInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.CreateDimension(r.Context(), req, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDimension handles PUT /api/v1/dimensions/{id}[?force=true]
func (h *CatalogHandler) UpdateDimension(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req admin.DimensionInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.UpdateDimension(r.Context(), id, req, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDimension handles DELETE /api/v1/dimensions/{id}[?force=true]
func (h *CatalogHandler) DeleteDimension(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.DeleteDimension(r.Context(), id, force(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteDimensions handles POST /api/v1/dimensions/bulk-delete[?force=true]
func (h *CatalogHandler) BulkDeleteDimensions(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.BulkDeleteDimensions(r.Context(), req.IDs, force(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// SetDimensionWeight handles PUT /api/v1/dimensions/{id}/weights/{year}
func (h *CatalogHandler) SetDimensionWeight(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req weightRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	dw, err := h.svc.SetDimensionWeight(r.Context(), id, year, req.Weight, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dw)
}

// ListIndicators handles GET /api/v1/indicators?dimension_id=
func (h *CatalogHandler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	dimensionID, err := queryInt64(r, "dimension_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	inds, err := h.svc.ListIndicators(r.Context(), dimensionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inds)
}

// IndicatorYears handles GET /api/v1/indicators/years
func (h *CatalogHandler) IndicatorYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.svc.IndicatorYears(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

// GetIndicator handles GET /api/v1/indicators/{id}
func (h *CatalogHandler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ind, err := h.svc.GetIndicator(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

// CreateIndicator handles POST /api/v1/indicators[?force=true]
func (h *CatalogHandler) CreateIndicator(w http.ResponseWriter, r *http.Request) {
	var req admin.IndicatorInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	ind, err := h.svc.CreateIndicator(r.Context(), req, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ind)
}

type updateIndicatorRequest struct {
	Name              string `json:"name" validate:"max=200"`
	Description       string `json:"description,omitempty"`
	NormalizationType string `json:"normalization_type,omitempty"`
	DimensionID       int64  `json:"dimension_id,omitempty"`
	Year              int    `json:"year" validate:"required,min=1900,max=2200"`
	Weight            int    `json:"weight" validate:"min=0,max=100"`
}

// UpdateIndicator handles PUT /api/v1/indicators/{id}[?force=true]
func (h *CatalogHandler) UpdateIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req updateIndicatorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	ind, err := h.svc.UpdateIndicator(r.Context(), id, admin.IndicatorInput(req), force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

// DeleteIndicator handles DELETE /api/v1/indicators/{id}[?force=true]
func (h *CatalogHandler) DeleteIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.DeleteIndicator(r.Context(), id, force(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteIndicators handles POST /api/v1/indicators/bulk-delete[?force=true]
func (h *CatalogHandler) BulkDeleteIndicators(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.BulkDeleteIndicators(r.Context(), req.IDs, force(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// SetIndicatorWeight handles PUT /api/v1/indicators/{id}/weights/{year}
func (h *CatalogHandler) SetIndicatorWeight(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req weightRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	iw, err := h.svc.SetIndicatorWeight(r.Context(), id, year, req.Weight, force(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, iw)
}
