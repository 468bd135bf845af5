package extractor

import "github.com/MikeSquared-Agency/Ranking/internal/apperr"

// MaxUploadSize is the largest spreadsheet accepted for extraction.
const MaxUploadSize = 10 << 20

var supportedTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// ValidateUpload rejects empty, oversized or non-spreadsheet uploads.
func ValidateUpload(contentType string, size int64) error {
	if size == 0 {
		return apperr.BadRequest("uploaded file is empty")
	}
	if !supportedTypes[contentType] {
		return apperr.BadRequest("unsupported file type %q: only CSV or Excel files are accepted", contentType)
	}
	if size > MaxUploadSize {
		return apperr.BadRequest("file exceeds the %dMB limit", MaxUploadSize>>20)
	}
	return nil
}
