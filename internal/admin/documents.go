package admin

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/files"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

// Upload is a report file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type DocumentInput struct {
	Title string `json:"title" validate:"required,max=255"`
	Year  int    `json:"year" validate:"required,min=1900,max=2200"`
}

func (s *Service) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

func (s *Service) fileStore() (files.Store, error) {
	if s.opts.Files == nil {
		return nil, apperr.Internal(nil, "document storage is not configured")
	}
	return s.opts.Files, nil
}

func (s *Service) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	ds, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ds, nil
}

func (s *Service) GetDocument(ctx context.Context, id int64) (*store.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if d == nil {
		return nil, apperr.NotFound("document %d not found", id)
	}
	return d, nil
}

func (s *Service) DocumentByYear(ctx context.Context, year int) (*store.Document, error) {
	d, err := s.store.GetDocumentByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if d == nil {
		return nil, apperr.NotFound("document not found for year %d", year)
	}
	return d, nil
}

func (s *Service) putFile(ctx context.Context, up Upload) (*files.Object, error) {
	fs, err := s.fileStore()
	if err != nil {
		return nil, err
	}
	if err := files.ValidateDocument(up.ContentType, up.Size, s.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	obj, err := fs.Put(ctx, up.FileName, up.ContentType, io.LimitReader(up.Body, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.Internal(err, "store document file")
	}
	if obj.Size > s.opts.MaxUploadBytes {
		s.dropFile(ctx, obj.Key)
		return nil, apperr.BadRequest("file exceeds the upload limit of %d bytes", s.opts.MaxUploadBytes)
	}
	return obj, nil
}

// dropFile removes a stored file. Failures leave an unreferenced file
// behind and are only logged.
func (s *Service) dropFile(ctx context.Context, key string) {
	if s.opts.Files == nil || key == "" {
		return
	}
	if err := s.opts.Files.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete document file", "key", key, "error", err)
	}
}

// UploadDocument publishes the report for a year. A year holds one report;
// use ReplaceDocumentFile to change it.
func (s *Service) UploadDocument(ctx context.Context, in DocumentInput, up Upload) (*store.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.BadRequest("document title is required")
	}
	if existing, err := s.store.GetDocumentByYear(ctx, in.Year); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	} else if existing != nil {
		return nil, apperr.Conflict("a document already exists for year %d", in.Year)
	}

	obj, err := s.putFile(ctx, up)
	if err != nil {
		return nil, err
	}
	d := &store.Document{
		Title:    title,
		Year:     in.Year,
		FileName: up.FileName,
		FileKey:  obj.Key,
		FileSize: obj.Size,
		FileType: obj.ContentType,
	}
	if err := s.store.CreateDocument(ctx, d); err != nil {
		s.dropFile(ctx, obj.Key)
		return nil, duplicate(err, "create document", "a document already exists for year %d", in.Year)
	}

	s.logger.Info("document uploaded", "document_id", d.ID, "year", d.Year, "size", d.FileSize)
	s.emit(hermes.SubjectDocumentPublished(d.Year), documentEvent(d))
	return d, nil
}

func (s *Service) UpdateDocumentTitle(ctx context.Context, id int64, title string) (*store.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.BadRequest("document title is required")
	}
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Title = title
	if err := s.store.UpdateDocument(ctx, d); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return d, nil
}

// ReplaceDocumentFile swaps the file behind a document. The old file is
// removed once the document points at the new one.
func (s *Service) ReplaceDocumentFile(ctx context.Context, id int64, up Upload) (*store.Document, error) {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.putFile(ctx, up)
	if err != nil {
		return nil, err
	}

	oldKey := d.FileKey
	d.FileName = up.FileName
	d.FileKey = obj.Key
	d.FileSize = obj.Size
	d.FileType = obj.ContentType
	if err := s.store.UpdateDocument(ctx, d); err != nil {
		s.dropFile(ctx, obj.Key)
		return nil, fmt.Errorf("update document: %w", err)
	}
	s.dropFile(ctx, oldKey)

	s.logger.Info("document file replaced", "document_id", d.ID, "year", d.Year)
	s.emit(hermes.SubjectDocumentPublished(d.Year), documentEvent(d))
	return d, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.dropFile(ctx, d.FileKey)

	s.logger.Info("document deleted", "document_id", d.ID, "year", d.Year)
	s.emit(hermes.SubjectDocumentRemoved(d.Year), documentEvent(d))
	return nil
}

// OpenDocument returns the document with a reader over its file. The caller
// closes the reader.
func (s *Service) OpenDocument(ctx context.Context, id int64) (*store.Document, io.ReadCloser, error) {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fs, err := s.fileStore()
	if err != nil {
		return nil, nil, err
	}
	rc, err := fs.Open(ctx, d.FileKey)
	if err != nil {
		return nil, nil, apperr.Internal(err, "open file of document %d", id)
	}
	return d, rc, nil
}

func documentEvent(d *store.Document) hermes.DocumentEvent {
	return hermes.DocumentEvent{ID: d.ID, Year: d.Year, Title: d.Title, FileName: d.FileName}
}
