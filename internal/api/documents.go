package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
)

// DocumentsHandler serves the annual report published for each year.
type DocumentsHandler struct {
	svc    *admin.Service
	logger *slog.Logger
}

func NewDocumentsHandler(svc *admin.Service, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, logger: logger}
}

// readDocumentFile parses a multipart request and returns its "file" part.
// The caller closes the returned file.
func (h *DocumentsHandler) readDocumentFile(w http.ResponseWriter, r *http.Request) (admin.Upload, multipart.File, error) {
	limit := h.svc.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return admin.Upload{}, nil, apperr.BadRequest("invalid multipart upload: %v", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return admin.Upload{}, nil, apperr.BadRequest("file is required")
	}
	return admin.Upload{
		FileName:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}, f, nil
}

// List handles GET /api/v1/documents
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// Get handles GET /api/v1/documents/{id}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ByYear handles GET /api/v1/documents/year/{year}
func (h *DocumentsHandler) ByYear(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.DocumentByYear(r.Context(), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Download handles GET /api/v1/documents/{id}/file
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, rc, err := h.svc.OpenDocument(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", d.FileType)
	w.Header().Set("Content-Length", strconv.FormatInt(d.FileSize, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(d.FileName, `"`, "")))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("document download interrupted", "document_id", id, "error", err)
	}
}

// Upload handles POST /api/v1/documents (multipart "file", "title", "year")
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	up, f, err := h.readDocumentFile(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer f.Close()

	year, err := strconv.Atoi(r.FormValue("year"))
	if err != nil {
		writeError(w, h.logger, apperr.BadRequest("invalid year %q", r.FormValue("year")))
		return
	}
	in := admin.DocumentInput{Title: r.FormValue("title"), Year: year}
	if err := validate.Struct(in); err != nil {
		writeError(w, h.logger, apperr.BadRequest("%s", validationMessage(err)))
		return
	}
	d, err := h.svc.UploadDocument(r.Context(), in, up)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type titleRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// UpdateTitle handles PUT /api/v1/documents/{id}
func (h *DocumentsHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req titleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.UpdateDocumentTitle(r.Context(), id, req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ReplaceFile handles PUT /api/v1/documents/{id}/file (multipart "file")
func (h *DocumentsHandler) ReplaceFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	up, f, err := h.readDocumentFile(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer f.Close()

	d, err := h.svc.ReplaceDocumentFile(r.Context(), id, up)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Delete handles DELETE /api/v1/documents/{id}
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
