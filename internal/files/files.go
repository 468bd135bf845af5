// Package files stores the report files attached to documents, either on
// local disk or in an S3 bucket.
package files

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
)

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store saves files under generated keys. Delete of a missing key is not
// an error.
type Store interface {
	Put(ctx context.Context, fileName, contentType string, r io.Reader) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func documentType(contentType string) bool {
	switch baseType(contentType) {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/csv":
		return true
	}
	return false
}

// ValidateDocument rejects empty, oversized or unsupported report files.
func ValidateDocument(contentType string, size, limit int64) error {
	if size == 0 {
		return apperr.BadRequest("uploaded file is empty")
	}
	if !documentType(contentType) {
		return apperr.BadRequest("unsupported file type %q: only PDF, Word, Excel or CSV files are accepted", contentType)
	}
	if limit > 0 && size > limit {
		return apperr.BadRequest("file exceeds the upload limit of %d bytes", limit)
	}
	return nil
}

func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// newKey returns a random key that keeps the file's extension.
func newKey(fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// sniff fills in a missing content type from the first bytes of r and
// returns a reader that still yields them.
func sniff(contentType string, r io.Reader) (string, io.Reader) {
	if t := baseType(contentType); t != "" && t != "application/octet-stream" {
		return contentType, r
	}
	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	return http.DetectContentType(head), br
}
