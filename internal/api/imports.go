package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/extractor"
)

// ImportsHandler forwards uploaded spreadsheets to the extraction service.
// Confirmed candidates are stored through POST /scores/import.
type ImportsHandler struct {
	svc       *admin.Service
	extractor extractor.Client
	logger    *slog.Logger
}

func NewImportsHandler(svc *admin.Service, ex extractor.Client, logger *slog.Logger) *ImportsHandler {
	return &ImportsHandler{svc: svc, extractor: ex, logger: logger}
}

type upload struct {
	filename string
	content  []byte
}

func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, extractor.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(extractor.MaxUploadSize); err != nil {
		return nil, apperr.BadRequest("invalid multipart upload: %v", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.BadRequest("file is required")
	}
	defer f.Close()
	if err := extractor.ValidateUpload(hdr.Header.Get("Content-Type"), hdr.Size); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.BadRequest("read upload: %v", err)
	}
	return &upload{filename: hdr.Filename, content: content}, nil
}

func (h *ImportsHandler) writeExtractorError(w http.ResponseWriter, err error) {
	if extractor.IsUnavailable(err) {
		h.logger.Warn("extraction service unavailable", "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "extraction service unavailable", Kind: "unavailable"})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(apperr.KindBadRequest)})
}

// Detect handles POST /api/v1/imports/detect (multipart "file")
func (h *ImportsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cols, err := h.extractor.DetectColumns(r.Context(), up.filename, up.content)
	if err != nil {
		h.writeExtractorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

type columnSelection struct {
	ColumnName  string `json:"column_name" validate:"required"`
	IndicatorID int64  `json:"indicator_id" validate:"required,gt=0"`
}

type processRequest struct {
	CountryColumn    string            `json:"country_column" validate:"required"`
	IndicatorColumns []columnSelection `json:"indicator_columns" validate:"required,min=1,dive"`
}

// Process handles POST /api/v1/imports/process (multipart "file",
// "columns" JSON and optional "normalized" flag). Each column is sent with
// its indicator's normalization type unless the file is already normalized.
func (h *ImportsHandler) Process(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req processRequest
	if err := json.Unmarshal([]byte(r.FormValue("columns")), &req); err != nil {
		writeError(w, h.logger, apperr.BadRequest("invalid columns: %v", err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, h.logger, apperr.BadRequest("%s", validationMessage(err)))
		return
	}
	normalized, _ := strconv.ParseBool(r.FormValue("normalized"))

	mapping := extractor.ColumnMapping{CountryColumn: req.CountryColumn}
	for _, c := range req.IndicatorColumns {
		ind, err := h.svc.GetIndicator(r.Context(), c.IndicatorID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		col := extractor.IndicatorColumn{ColumnName: c.ColumnName, IndicatorID: strconv.FormatInt(c.IndicatorID, 10)}
		if !normalized {
			nt := ind.NormalizationType
			col.NormalizationType = &nt
		}
		mapping.IndicatorColumns = append(mapping.IndicatorColumns, col)
	}

	candidates, err := h.extractor.ProcessConfirmed(r.Context(), up.filename, up.content, mapping)
	if err != nil {
		h.writeExtractorError(w, err)
		return
	}
	if candidates == nil {
		candidates = []extractor.ScoreCandidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}
